package vault

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

// API is the deployment/recovery orchestrator: it sequences registry
// validation, UTxO queries, assembly, signing, submission and
// confirmation. One withdrawal at a time per contract entry; different
// contracts may be orchestrated concurrently (the store serializes its
// own writes).
type API struct {
	Store  Store
	Chain  ChainIndex
	Signer Signer
	Bus    *MessageBus
	Config Config

	chain *cardano.ChainParams

	// retry/confirmation pacing; NewAPI sets the production values
	retryBackoff   time.Duration
	confirmWait    time.Duration
	confirmPoll    time.Duration
	confirmPollCap time.Duration
}

func NewAPI(store Store, chain ChainIndex, signer Signer, bus *MessageBus, config Config) API {
	return API{
		Store:          store,
		Chain:          chain,
		Signer:         signer,
		Bus:            bus,
		Config:         config,
		chain:          cardano.ChainFromNetworkName(config.AgentVault.Network),
		retryBackoff:   indexBackoffBase,
		confirmWait:    confirmMaxWait,
		confirmPoll:    confirmBackoff,
		confirmPollCap: confirmBackoffCap,
	}
}

// ChainParams exposes the network the API is bound to.
func (a API) ChainParams() *cardano.ChainParams {
	return a.chain
}

// WithTiming returns a copy with custom retry/confirmation pacing.
func (a API) WithTiming(retryBackoff, confirmWait, confirmPoll time.Duration) API {
	a.retryBackoff = retryBackoff
	a.confirmWait = confirmWait
	a.confirmPoll = confirmPoll
	if a.confirmPollCap < a.confirmPoll {
		a.confirmPollCap = a.confirmPoll
	}
	return a
}

func (a API) send(t EventType, msg interface{}, id ...string) {
	if a.Bus != nil {
		a.Bus.Send(t, msg, id...)
	}
}

const (
	indexRetries      = 3
	indexBackoffBase  = 2 * time.Second
	confirmMaxWait    = 2 * time.Minute
	confirmBackoff    = 5 * time.Second
	confirmBackoffCap = 30 * time.Second
)

type RegisterRequest struct {
	Purpose       string `json:"purpose"`
	ScriptHex     string `json:"script_hex"`
	ScriptVersion string `json:"script_version"`
	// Claimed identity; both optional. When present they are verified
	// against the derivation and a mismatch rejects the registration.
	ScriptHash string          `json:"script_hash,omitempty"`
	Address    cardano.Address `json:"address,omitempty"`

	WithdrawConstr uint64 `json:"withdraw_constr"`
	ExUnitsMem     uint64 `json:"ex_units_mem,omitempty"`
	ExUnitsSteps   uint64 `json:"ex_units_steps,omitempty"`
}

// RegisterContract derives and verifies the script identity, then creates
// a registry entry in 'testing'. A claimed hash/address pair that does not
// re-derive from the script bytes is rejected outright and nothing is
// stored: transacting against an unverified pair is how funds get stuck.
func (a API) RegisterContract(req RegisterRequest) (ContractEntry, error) {
	if req.Purpose == "" {
		return ContractEntry{}, NewErr(BadRequest, "missing purpose")
	}
	version, err := cardano.ParseScriptVersion(req.ScriptVersion)
	if err != nil {
		return ContractEntry{}, NewErr(BadRequest, "%v", err)
	}
	script, err := cardano.HexDecode(req.ScriptHex)
	if err != nil || len(script) == 0 {
		return ContractEntry{}, NewErr(BadRequest, "script hex is empty or invalid")
	}

	hash, addr, err := cardano.ScriptIdentityOf(script, version, a.chain)
	if err != nil {
		return ContractEntry{}, NewErr(BadRequest, "cannot derive script identity: %v", err)
	}
	if req.ScriptHash != "" || req.Address != "" {
		claimedHash := req.ScriptHash
		if claimedHash == "" {
			claimedHash = hash.String()
		}
		claimedAddr := req.Address
		if claimedAddr == "" {
			claimedAddr = addr
		}
		if err := cardano.VerifyScriptIdentity(claimedHash, claimedAddr, script, version, a.chain); err != nil {
			a.send(REG_REJECTED, map[string]string{"purpose": req.Purpose, "reason": err.Error()})
			return ContractEntry{}, NewErrWithAction(RegistrationRejected, "check the registry",
				"hash/address mismatch: %v", err)
		}
	}

	now := time.Now().UTC()
	entry := ContractEntry{
		ID:             uuid.NewString(),
		Purpose:        req.Purpose,
		ScriptHex:      req.ScriptHex,
		ScriptVersion:  version,
		ScriptHash:     hash.String(),
		Address:        addr,
		WithdrawConstr: req.WithdrawConstr,
		ExUnitsMem:     req.ExUnitsMem,
		ExUnitsSteps:   req.ExUnitsSteps,
		Status:         StatusTesting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Store.AddContract(entry); err != nil {
		return ContractEntry{}, err
	}
	a.send(REG_REGISTERED, entry, entry.ID)
	return entry, nil
}

// DeployContract registers the script and reports the address to fund.
// Funding happens externally (any wallet can pay the script address);
// CheckDeployment picks up the deposit afterwards.
func (a API) DeployContract(req RegisterRequest) (ContractEntry, error) {
	entry, err := a.RegisterContract(req)
	if err != nil {
		return ContractEntry{}, err
	}
	log.Printf("DeployContract: %s (%s) awaiting funds at %s", entry.ID, entry.Purpose, entry.Address)
	return entry, nil
}

// CheckDeployment refreshes the balance snapshot and records the funding
// transaction once the address holds value.
func (a API) CheckDeployment(ctx context.Context, id string) (ContractEntry, error) {
	entry, err := a.Store.GetContract(id)
	if err != nil {
		return ContractEntry{}, err
	}
	utxos, err := a.getUtxos(ctx, entry.Address)
	if err != nil {
		return ContractEntry{}, err
	}
	total, err := SumUtxos(utxos)
	if err != nil {
		return ContractEntry{}, err
	}
	if err := a.Store.SetBalanceSnapshot(entry.ID, total.Lovelace); err != nil {
		return ContractEntry{}, err
	}
	if entry.DeploymentTxHash == "" && len(utxos) > 0 {
		if err := a.Store.SetDeploymentTx(entry.ID, utxos[0].TxHash); err != nil {
			return ContractEntry{}, err
		}
	}
	return a.Store.GetContract(id)
}

type ContractStatusResponse struct {
	Entry           ContractEntry  `json:"entry"`
	BalanceLovelace uint64         `json:"balance_lovelace"`
	BalanceAda      string         `json:"balance_ada"`
	UtxoCount       int            `json:"utxo_count"`
	Audit           []StatusChange `json:"audit"`
}

// ContractStatus returns the entry with a live balance refresh.
func (a API) ContractStatus(ctx context.Context, id string) (ContractStatusResponse, error) {
	entry, err := a.Store.GetContract(id)
	if err != nil {
		return ContractStatusResponse{}, err
	}
	resp := ContractStatusResponse{Entry: entry}
	utxos, err := a.getUtxos(ctx, entry.Address)
	if err != nil && !IsError(err, NoFundsAtAddress) && !IsNotFoundError(err) {
		return ContractStatusResponse{}, err
	}
	total, err := SumUtxos(utxos)
	if err != nil {
		return ContractStatusResponse{}, err
	}
	resp.BalanceLovelace = total.Lovelace
	resp.BalanceAda = Ada(total.Lovelace).String()
	resp.UtxoCount = len(utxos)
	a.Store.SetBalanceSnapshot(entry.ID, total.Lovelace)
	if audit, err := a.Store.GetAuditTrail(id); err == nil {
		resp.Audit = audit
	}
	return resp, nil
}

func (a API) ListContracts() ([]ContractEntry, error) {
	return a.Store.ListContracts()
}

// UpdateContractStatus applies a manual lifecycle transition.
func (a API) UpdateContractStatus(id string, to ContractStatus, notes string) error {
	if !to.Valid() {
		return NewErr(BadRequest, "unknown status %q", to)
	}
	if err := a.Store.UpdateContractStatus(id, to, notes); err != nil {
		return err
	}
	a.send(REG_STATUS, map[string]string{"id": id, "status": string(to), "notes": notes}, id)
	return nil
}

type WithdrawRequest struct {
	EntryID        string          `json:"entry_id"`
	To             cardano.Address `json:"to"`
	AmountLovelace uint64          `json:"amount_lovelace"` // ignored when All
	All            bool            `json:"all"`
	// Test marks a successful confirmed withdrawal as the contract's
	// promotion from testing to active.
	Test bool `json:"test"`
}

type WithdrawResult struct {
	TxHash         string `json:"tx_hash"`
	Fee            uint64 `json:"fee"`
	AmountLovelace uint64 `json:"amount_lovelace"`
	AmountAda      string `json:"amount_ada"`
	Inputs         int    `json:"inputs"`
	Confirmed      bool   `json:"confirmed"`
	// Pending means submitted but not confirmed within the bounded wait:
	// the transaction is on the network and may still land.
	Pending bool `json:"pending"`
}

// Withdraw runs the full orchestration. Cancellable via ctx at every step
// before submission; submission is the point of no return (on-chain
// finality), after which cancellation only stops the confirmation wait.
func (a API) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	entry, err := a.Store.GetContract(req.EntryID)
	if err != nil {
		return WithdrawResult{}, err
	}
	switch entry.Status {
	case StatusTesting, StatusActive:
	default:
		return WithdrawResult{}, NewErr(BadRequest,
			"contract %s is %s; only testing/active contracts can withdraw", entry.ID, entry.Status)
	}

	// identity gate: a mismatch here means funds already sit at an
	// address the stored script cannot unlock. Mark the entry stuck.
	if err := entry.VerifyIdentity(a.chain); err != nil {
		a.Store.UpdateContractStatus(entry.ID, StatusStuck, err.Error())
		a.send(REG_STUCK, map[string]string{"id": entry.ID, "reason": err.Error()}, entry.ID)
		return WithdrawResult{}, err
	}

	utxos, err := a.getUtxos(ctx, entry.Address)
	if err != nil {
		return WithdrawResult{}, err
	}
	if len(utxos) == 0 {
		return WithdrawResult{}, NewErrWithAction(NoFundsAtAddress, "fund the address",
			"no UTxOs at %s", entry.Address)
	}

	params, err := a.assembleParams(&entry)
	if err != nil {
		return WithdrawResult{}, err
	}
	draft, err := a.buildDraft(utxos, req, params)
	if err != nil {
		return WithdrawResult{}, err
	}
	a.send(TX_ASSEMBLED, map[string]interface{}{
		"entry": entry.ID, "tx_hash": draft.TxID, "fee": draft.Fee, "inputs": len(draft.Tx.Body.Inputs),
	}, entry.ID)

	if err := ctx.Err(); err != nil {
		a.send(TX_CANCELLED, map[string]string{"entry": entry.ID}, entry.ID)
		return WithdrawResult{}, NewErr(UserRejected, "cancelled before signing")
	}
	if a.Signer == nil {
		return WithdrawResult{}, NewErrWithAction(NotAvailable, "configure a signing key",
			"no signer configured; unsigned tx: %s", draft.UnsignedCborHex)
	}
	witness, err := a.Signer.SignTx(ctx, draft.UnsignedCborHex)
	if err != nil {
		if IsUserRejectedError(err) {
			a.send(TX_CANCELLED, map[string]string{"entry": entry.ID}, entry.ID)
			return WithdrawResult{}, err
		}
		return WithdrawResult{}, err
	}
	if err := draft.MergeWitness(witness); err != nil {
		return WithdrawResult{}, err
	}
	a.send(TX_SIGNED, map[string]string{"entry": entry.ID, "tx_hash": draft.TxID}, entry.ID)

	if err := ctx.Err(); err != nil {
		a.send(TX_CANCELLED, map[string]string{"entry": entry.ID}, entry.ID)
		return WithdrawResult{}, NewErr(UserRejected, "cancelled before submission")
	}

	// point of no return
	txHash, err := a.submitWithRetry(ctx, draft.SignedCborHex())
	if err != nil {
		a.send(TX_REJECTED, map[string]string{"entry": entry.ID, "reason": err.Error()}, entry.ID)
		return WithdrawResult{}, err
	}
	a.send(TX_SUBMITTED, map[string]string{"entry": entry.ID, "tx_hash": txHash}, entry.ID)

	result := WithdrawResult{
		TxHash:         txHash,
		Fee:            draft.Fee,
		AmountLovelace: draft.TotalOut - draft.ChangeLovelace,
		AmountAda:      Ada(draft.TotalOut - draft.ChangeLovelace).String(),
		Inputs:         len(draft.Tx.Body.Inputs),
	}

	confirmed := a.awaitConfirmation(ctx, txHash)
	if !confirmed {
		result.Pending = true
		a.send(TX_PENDING, map[string]string{"entry": entry.ID, "tx_hash": txHash}, entry.ID)
		return result, nil
	}
	result.Confirmed = true
	a.send(TX_CONFIRMED, map[string]string{"entry": entry.ID, "tx_hash": txHash}, entry.ID)

	if req.Test && entry.Status == StatusTesting {
		if err := a.Store.UpdateContractStatus(entry.ID, StatusActive, "test withdrawal confirmed "+txHash); err != nil {
			log.Printf("Withdraw: could not promote %s to active: %v", entry.ID, err)
		}
	}
	if utxos, err := a.getUtxos(ctx, entry.Address); err == nil {
		if total, err := SumUtxos(utxos); err == nil {
			a.Store.SetBalanceSnapshot(entry.ID, total.Lovelace)
		}
	}
	return result, nil
}

func (a API) assembleParams(entry *ContractEntry) (AssembleParams, error) {
	script, err := entry.ScriptBytes()
	if err != nil {
		return AssembleParams{}, err
	}
	var views []byte
	if hexViews, ok := a.Config.CostModels[entry.ScriptVersion.String()]; ok {
		views, err = cardano.HexDecode(hexViews)
		if err != nil {
			return AssembleParams{}, NewErr(BadRequest, "cost model views for %s are not valid hex", entry.ScriptVersion)
		}
	}
	return AssembleParams{
		ScriptBytes:  script,
		Version:      entry.ScriptVersion,
		RedeemerData: entry.WithdrawRedeemer(),
		ExUnits:      entry.ExUnits(a.chain),
		LangViews:    views,
		TTL:          0, // no expiry; recovery flows must not race a slot deadline
		Chain:        a.chain,
	}, nil
}

// buildDraft runs the fee loop: estimate, select, assemble,
// reprice from the real encoding, and repeat until the fee is stable.
func (a API) buildDraft(utxos []Utxo, req WithdrawRequest, params AssembleParams) (TxDraft, error) {
	if req.All {
		return AssembleWithdrawAll(utxos, req.To, params)
	}
	if req.AmountLovelace == 0 {
		return TxDraft{}, NewErr(BadRequest, "missing withdrawal amount")
	}
	feeEstimate := EstimateWithdrawalFee(1, len(params.ScriptBytes), params)
	for attempt := 0; attempt < 10; attempt++ {
		sel, err := SelectWithdrawal(utxos, req.AmountLovelace, feeEstimate, params.Chain.MinUtxo)
		if err != nil {
			return TxDraft{}, err
		}
		fee, err := AddChecked(feeEstimate, sel.DustFolded)
		if err != nil {
			return TxDraft{}, err
		}
		draft, err := AssembleWithdrawal(sel, req.To, req.AmountLovelace, fee, params)
		if err != nil {
			return TxDraft{}, err
		}
		size, err := draft.Tx.EstimateSize(1)
		if err != nil {
			return TxDraft{}, NewErr(InvalidTxn, "%v", err)
		}
		needed := cardano.MinFee(size, params.Chain)
		if fee >= needed {
			return draft, nil
		}
		feeEstimate = needed
	}
	return TxDraft{}, NewErr(InvalidTxn, "fee sizing did not stabilize after 10 attempts")
}

// getUtxos queries the chain index with bounded retries on transient
// failures. Ledger/identity errors pass straight through.
func (a API) getUtxos(ctx context.Context, addr cardano.Address) ([]Utxo, error) {
	var lastErr error
	for attempt := 0; attempt < indexRetries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, a.retryBackoff<<(attempt-1)) {
				return nil, NewErr(UserRejected, "cancelled while querying the chain index")
			}
		}
		utxos, err := a.Chain.GetUtxos(ctx, addr)
		if err == nil {
			return utxos, nil
		}
		if IsNotFoundError(err) {
			// address never used: not a transport fault
			return nil, nil
		}
		if !Retryable(err) {
			return nil, err
		}
		lastErr = err
		log.Printf("getUtxos: transient failure (attempt %d): %v", attempt+1, err)
	}
	return nil, lastErr
}

func (a API) submitWithRetry(ctx context.Context, signedCborHex string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < indexRetries; attempt++ {
		if attempt > 0 {
			// the tx may have landed despite the transport error;
			// resubmission of the same bytes is idempotent
			if !sleepCtx(ctx, a.retryBackoff<<(attempt-1)) {
				break
			}
		}
		txHash, err := a.Chain.SubmitTx(ctx, signedCborHex)
		if err == nil {
			return txHash, nil
		}
		if !Retryable(err) {
			// a ledger rejection: the transaction itself is wrong and
			// must be rebuilt, not replayed
			return "", err
		}
		lastErr = err
		log.Printf("submitWithRetry: transient failure (attempt %d): %v", attempt+1, err)
	}
	return "", lastErr
}

// awaitConfirmation polls with exponential backoff up to confirmMaxWait.
// Returns false (pending, not failed) on timeout or cancellation.
func (a API) awaitConfirmation(ctx context.Context, txHash string) bool {
	needed := a.Config.AgentVault.ConfirmationsNeeded
	if needed < 1 {
		needed = 1
	}
	deadline := time.Now().Add(a.confirmWait)
	wait := a.confirmPoll
	for time.Now().Before(deadline) {
		if !sleepCtx(ctx, wait) {
			return false
		}
		status, err := a.Chain.GetTxStatus(ctx, txHash)
		if err == nil && status.InLedger && status.Confirmations >= needed {
			return true
		}
		if err != nil && !Retryable(err) && !IsNotFoundError(err) {
			log.Printf("awaitConfirmation: %v", err)
		}
		wait *= 2
		if wait > a.confirmPollCap {
			wait = a.confirmPollCap
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

package vault

import (
	"time"

	"github.com/misterlabs/agentvault/pkg/cardano"
)

// ContractStatus is the lifecycle state of a registered script/address pair.
type ContractStatus string

const (
	StatusTesting    ContractStatus = "testing"
	StatusActive     ContractStatus = "active"
	StatusDeprecated ContractStatus = "deprecated"
	// StatusStuck is terminal: funds at the address are provably
	// unrecoverable with current tooling (e.g. the script hash does not
	// match the address holding them).
	StatusStuck ContractStatus = "stuck"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case StatusTesting, StatusActive, StatusDeprecated, StatusStuck:
		return true
	}
	return false
}

// ValidTransition enforces the status machine:
// testing -> active | deprecated ; active -> deprecated ; any -> stuck.
// Nothing leaves stuck.
func ValidTransition(from, to ContractStatus) bool {
	if from == StatusStuck {
		return false
	}
	if to == StatusStuck {
		return true
	}
	switch from {
	case StatusTesting:
		return to == StatusActive || to == StatusDeprecated
	case StatusActive:
		return to == StatusDeprecated
	}
	return false
}

// ContractEntry is one registered script/address pair. The registry is the
// single source of truth for which pairs are safe to transact against;
// callers must never hardcode an address around it.
type ContractEntry struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"` // e.g. "agent_vault"

	// script identity; verified at registration, re-verified before
	// every withdrawal
	ScriptHex     string                `json:"script_hex"`
	ScriptVersion cardano.ScriptVersion `json:"script_version"`
	ScriptHash    string                `json:"script_hash"`
	Address       cardano.Address       `json:"address"`

	// interface contract of this particular validator
	WithdrawConstr uint64 `json:"withdraw_constr"` // redeemer constructor index for the withdraw path
	ExUnitsMem     uint64 `json:"ex_units_mem"`
	ExUnitsSteps   uint64 `json:"ex_units_steps"`

	Status           ContractStatus `json:"status"`
	DeploymentTxHash string         `json:"deployment_tx_hash,omitempty"`
	BalanceSnapshot  uint64         `json:"balance_snapshot"` // lovelace, last observed
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ScriptBytes decodes the stored script hex.
func (e *ContractEntry) ScriptBytes() ([]byte, error) {
	b, err := cardano.HexDecode(e.ScriptHex)
	if err != nil || len(b) == 0 {
		return nil, NewErr(BadRequest, "contract %s: script hex is invalid", e.ID)
	}
	return b, nil
}

// VerifyIdentity recomputes the script hash and address from the stored
// script bytes and compares them with the stored pair. Must be called
// before any transaction referencing the entry is assembled.
func (e *ContractEntry) VerifyIdentity(chain *cardano.ChainParams) error {
	script, err := e.ScriptBytes()
	if err != nil {
		return err
	}
	err = cardano.VerifyScriptIdentity(e.ScriptHash, e.Address, script, e.ScriptVersion, chain)
	if err != nil {
		return NewErrWithAction(ScriptIdentityMismatch, "check the registry entry",
			"contract %s (%s): %v", e.ID, e.Purpose, err)
	}
	return nil
}

// ExUnits returns this contract's execution budget, falling back to the
// chain defaults when unset.
func (e *ContractEntry) ExUnits(chain *cardano.ChainParams) cardano.ExUnits {
	mem, steps := e.ExUnitsMem, e.ExUnitsSteps
	if mem == 0 {
		mem = chain.MaxExMem / 2
	}
	if steps == 0 {
		steps = chain.MaxExSteps / 2
	}
	return cardano.ExUnits{Mem: mem, Steps: steps}
}

// WithdrawRedeemer builds the redeemer payload for this contract's
// withdraw path. The constructor index is contract configuration: the
// same tag has been observed as 0 on one deployed script and 1 on
// another, so it is data, never a constant.
func (e *ContractEntry) WithdrawRedeemer() cardano.Data {
	return cardano.Constr{Index: e.WithdrawConstr}
}

// StatusChange is one entry in a contract's append-only audit trail.
type StatusChange struct {
	ContractID string         `json:"contract_id"`
	From       ContractStatus `json:"from"`
	To         ContractStatus `json:"to"`
	Notes      string         `json:"notes"`
	At         time.Time      `json:"at"`
}

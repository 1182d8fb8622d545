package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

// interface guard ensures BlockfrostIndex implements vault.ChainIndex
var _ vault.ChainIndex = BlockfrostIndex{}

// NewBlockfrostIndex returns a vault.ChainIndex backed by a Blockfrost-
// compatible REST indexer, configured for the network named in config.
func NewBlockfrostIndex(config vault.Config) (BlockfrostIndex, error) {
	net, ok := config.ChainIndex[config.AgentVault.Network]
	if !ok {
		return BlockfrostIndex{}, fmt.Errorf("no chain index configured for network %q", config.AgentVault.Network)
	}
	timeout := time.Duration(net.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return BlockfrostIndex{
		url:       strings.TrimRight(net.URL, "/"),
		projectID: net.ProjectID,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type BlockfrostIndex struct {
	url       string
	projectID string
	client    *http.Client
}

type bfAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type bfAddress struct {
	Amount []bfAmount `json:"amount"`
}

type bfUtxo struct {
	TxHash      string     `json:"tx_hash"`
	OutputIndex uint32     `json:"output_index"`
	Amount      []bfAmount `json:"amount"`
	DataHash    string     `json:"data_hash"`
	InlineDatum string     `json:"inline_datum"`
}

type bfTx struct {
	Hash        string `json:"hash"`
	BlockHeight int    `json:"block_height"`
}

type bfBlock struct {
	Height int `json:"height"`
}

type bfError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (b BlockfrostIndex) request(ctx context.Context, method, path, contentType string, payload []byte, result any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, body)
	if err != nil {
		return vault.NewErr(vault.NetworkError, "chain index request: %v", err)
	}
	if b.projectID != "" {
		req.Header.Set("project_id", b.projectID)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := b.client.Do(req)
	if err != nil {
		return vault.NewErr(vault.NetworkError, "chain index transport: %v", err)
	}
	// read all of res.Body so the connection can be re-used
	defer res.Body.Close()
	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return vault.NewErr(vault.NetworkError, "chain index read response: %v", err)
	}
	if res.StatusCode != 200 {
		return b.statusError(res.StatusCode, resBytes)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resBytes, result); err != nil {
		return vault.NewErr(vault.NetworkError, "chain index unmarshal: %v | %v", err, string(resBytes))
	}
	return nil
}

func (b BlockfrostIndex) statusError(code int, body []byte) error {
	var e bfError
	json.Unmarshal(body, &e)
	msg := e.Message
	if msg == "" {
		msg = string(body)
	}
	switch {
	case code == 404:
		return vault.NewErr(vault.NotFound, "chain index: not found: %s", msg)
	case code == 400:
		return ClassifySubmitError(msg)
	case code == 402 || code == 403:
		return vault.NewErr(vault.NotAvailable, "chain index refused the request (check project_id): %s", msg)
	case code == 429 || code >= 500:
		return vault.NewErr(vault.NetworkError, "chain index status %d: %s", code, msg)
	}
	return vault.NewErr(vault.UnknownError, "chain index status %d: %s", code, msg)
}

// ledger rules worth naming to the operator, matched against the node
// error text the indexer relays back on submit.
var ledgerRules = []struct {
	rule   string
	action string
}{
	{"MissingScriptWitnessesUTXOW", "attach the script witness; re-verify the registry entry"},
	{"MissingRedeemers", "every script input needs a redeemer at its canonical index"},
	{"ExtraRedeemers", "redeemer indices do not line up with the sorted inputs"},
	{"PPViewHashesDontMatch", "script data hash mismatch; rebuild with the current cost models"},
	{"BadInputsUTxO", "inputs already spent; re-query the UTxO set and rebuild"},
	{"ValueNotConservedUTxO", "inputs minus outputs does not equal the fee; rebuild"},
	{"FeeTooSmallUTxO", "increase the fee and rebuild"},
	{"OutsideValidityIntervalUTxO", "transaction expired; rebuild with a fresh TTL"},
	{"OutputTooSmallUTxO", "an output is below the minimum lovelace; rebuild"},
	{"WrongNetwork", "address network does not match the node; check the configured network"},
}

// ClassifySubmitError maps a node rejection message to a LedgerRejection
// carrying the rule name and a suggested action. Rejections are never
// retryable: the transaction itself is wrong.
func ClassifySubmitError(msg string) error {
	for _, r := range ledgerRules {
		if strings.Contains(msg, r.rule) {
			return vault.NewErrWithAction(vault.LedgerRejection, r.action, "%s: %s", r.rule, msg)
		}
	}
	return vault.NewErr(vault.LedgerRejection, "transaction rejected: %s", msg)
}

func amountsToValue(amounts []bfAmount) (vault.Value, error) {
	out := vault.Value{}
	for _, a := range amounts {
		qty, err := strconv.ParseUint(a.Quantity, 10, 64)
		if err != nil {
			return vault.Value{}, vault.NewErr(vault.NetworkError, "chain index returned bad quantity %q", a.Quantity)
		}
		if a.Unit == "lovelace" {
			sum, err := vault.AddChecked(out.Lovelace, qty)
			if err != nil {
				return vault.Value{}, err
			}
			out.Lovelace = sum
			continue
		}
		if out.Assets == nil {
			out.Assets = map[string]uint64{}
		}
		sum, err := vault.AddChecked(out.Assets[a.Unit], qty)
		if err != nil {
			return vault.Value{}, err
		}
		out.Assets[a.Unit] = sum
	}
	return out, nil
}

func (b BlockfrostIndex) GetAddressInfo(ctx context.Context, addr cardano.Address) (vault.AddressInfo, error) {
	var res bfAddress
	if err := b.request(ctx, "GET", "/addresses/"+string(addr), "", nil, &res); err != nil {
		return vault.AddressInfo{}, err
	}
	balance, err := amountsToValue(res.Amount)
	if err != nil {
		return vault.AddressInfo{}, err
	}
	utxos, err := b.GetUtxos(ctx, addr)
	if err != nil && !vault.IsNotFoundError(err) {
		return vault.AddressInfo{}, err
	}
	return vault.AddressInfo{Address: addr, Balance: balance, UtxoCount: len(utxos)}, nil
}

func (b BlockfrostIndex) GetUtxos(ctx context.Context, addr cardano.Address) ([]vault.Utxo, error) {
	var res []bfUtxo
	if err := b.request(ctx, "GET", "/addresses/"+string(addr)+"/utxos", "", nil, &res); err != nil {
		return nil, err
	}
	utxos := make([]vault.Utxo, 0, len(res))
	for _, u := range res {
		value, err := amountsToValue(u.Amount)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, vault.Utxo{
			TxHash:      u.TxHash,
			OutputIndex: u.OutputIndex,
			Address:     addr,
			Value:       value,
			DatumHash:   u.DataHash,
			InlineDatum: u.InlineDatum,
		})
	}
	return utxos, nil
}

func (b BlockfrostIndex) SubmitTx(ctx context.Context, signedCborHex string) (string, error) {
	raw, err := cardano.HexDecode(signedCborHex)
	if err != nil {
		return "", vault.NewErr(vault.InvalidTxn, "submit: transaction is not valid hex")
	}
	var txHash string
	if err := b.request(ctx, "POST", "/tx/submit", "application/cbor", raw, &txHash); err != nil {
		return "", err
	}
	if len(txHash) != 64 || !cardano.IsValidHex(txHash) {
		return "", vault.NewErr(vault.NetworkError, "submit did not return a txid: %q", txHash)
	}
	return txHash, nil
}

func (b BlockfrostIndex) GetTxStatus(ctx context.Context, txHash string) (vault.TxStatus, error) {
	var tx bfTx
	err := b.request(ctx, "GET", "/txs/"+txHash, "", nil, &tx)
	if vault.IsNotFoundError(err) {
		// not in the ledger yet: still in the mempool or dropped
		return vault.TxStatus{TxHash: txHash}, nil
	}
	if err != nil {
		return vault.TxStatus{}, err
	}
	var tip bfBlock
	if err := b.request(ctx, "GET", "/blocks/latest", "", nil, &tip); err != nil {
		return vault.TxStatus{}, err
	}
	confirmations := tip.Height - tx.BlockHeight + 1
	if confirmations < 1 {
		confirmations = 1
	}
	return vault.TxStatus{TxHash: txHash, InLedger: true, Confirmations: confirmations}, nil
}

package ledger

import (
	"context"
	"sync"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

var _ vault.ChainIndex = &MockIndex{}

// MockIndex is an in-memory ChainIndex for development and tests: fund
// addresses by hand, submissions confirm immediately.
type MockIndex struct {
	mu        sync.Mutex
	utxos     map[cardano.Address][]vault.Utxo
	Submitted []string
	// SubmitErr, when set, is returned by the next SubmitTx call.
	SubmitErr error
}

func NewMockIndex() *MockIndex {
	return &MockIndex{utxos: map[cardano.Address][]vault.Utxo{}}
}

// Fund places a UTxO at an address.
func (m *MockIndex) Fund(u vault.Utxo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utxos[u.Address] = append(m.utxos[u.Address], u)
}

func (m *MockIndex) GetAddressInfo(ctx context.Context, addr cardano.Address) (vault.AddressInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	utxos := m.utxos[addr]
	total, err := vault.SumUtxos(utxos)
	if err != nil {
		return vault.AddressInfo{}, err
	}
	return vault.AddressInfo{Address: addr, Balance: total, UtxoCount: len(utxos)}, nil
}

func (m *MockIndex) GetUtxos(ctx context.Context, addr cardano.Address) ([]vault.Utxo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]vault.Utxo, len(m.utxos[addr]))
	copy(out, m.utxos[addr])
	return out, nil
}

func (m *MockIndex) SubmitTx(ctx context.Context, signedCborHex string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		err := m.SubmitErr
		m.SubmitErr = nil
		return "", err
	}
	raw, err := cardano.HexDecode(signedCborHex)
	if err != nil {
		return "", vault.NewErr(vault.InvalidTxn, "submit: not valid hex")
	}
	m.Submitted = append(m.Submitted, signedCborHex)
	// the mock does not replay spends; balances are adjusted via Fund
	return cardano.HexEncode(cardano.Blake2b256(raw)), nil
}

func (m *MockIndex) GetTxStatus(ctx context.Context, txHash string) (vault.TxStatus, error) {
	return vault.TxStatus{TxHash: txHash, InLedger: true, Confirmations: 1000}, nil
}

package signer

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

func testDraft(t *testing.T) vault.TxDraft {
	t.Helper()
	script, _ := cardano.HexDecode("4e4d01000033222220051200120011")
	utxo := vault.Utxo{
		TxHash:      strings.Repeat("11", 32),
		OutputIndex: 0,
		Address:     "addr1wxp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gse3d3ft",
		Value:       vault.Value{Lovelace: 10_000_000},
	}
	sel := vault.Selection{Selected: []vault.Utxo{utxo}, Total: 10_000_000}
	draft, err := vault.AssembleWithdrawal(sel,
		"addr1v8uaegs6djpxaj9vkn8njh9uys63jdaluetqkf5r4w95zhcucvhfc",
		9_800_000, 200_000, vault.AssembleParams{
			ScriptBytes:  script,
			Version:      cardano.ScriptV2,
			RedeemerData: cardano.Constr{Index: 1},
			ExUnits:      cardano.ExUnits{Mem: 1000, Steps: 1000},
			Chain:        &cardano.MainNetChain,
		})
	if err != nil {
		t.Fatalf("AssembleWithdrawal: %v", err)
	}
	return draft
}

func TestSignTxProducesVerifiableWitness(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	draft := testDraft(t)
	witness, err := s.SignTx(context.Background(), draft.UnsignedCborHex)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	if err := draft.MergeWitness(witness); err != nil {
		t.Fatalf("MergeWitness: %v", err)
	}
	w := draft.Tx.Witness.VKeyWitnesses[0]
	txid, _ := cardano.HexDecode(draft.TxID)
	if !ed25519.Verify(ed25519.PublicKey(w.VKey), txid, w.Signature) {
		t.Fatalf("witness does not verify over the tx id")
	}
}

func TestSignTxIsDeterministicOverTxID(t *testing.T) {
	s, err := New(strings.Repeat("0f", 32))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	draft := testDraft(t)
	w1, err := s.SignTx(context.Background(), draft.UnsignedCborHex)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	w2, err := s.SignTx(context.Background(), draft.UnsignedCborHex)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	if w1 != w2 {
		t.Fatalf("same key over same tx must produce identical witnesses")
	}
}

func TestNewRejectsBadSeed(t *testing.T) {
	if _, err := New("abcd"); !vault.IsError(err, vault.SigningError) {
		t.Fatalf("expected SigningError, got %v", err)
	}
	if _, err := New("not-hex"); !vault.IsError(err, vault.SigningError) {
		t.Fatalf("expected SigningError, got %v", err)
	}
}

func TestSignerAddress(t *testing.T) {
	s, err := New(strings.Repeat("0f", 32))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := s.Address(&cardano.MainNetChain)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if !strings.HasPrefix(string(addr), "addr1v") {
		t.Fatalf("expected a mainnet enterprise key address, got %s", addr)
	}
	if !cardano.ValidateAddress(addr, &cardano.MainNetChain) {
		t.Fatalf("derived address does not validate")
	}
}

func TestSignTxCancelled(t *testing.T) {
	s, _ := Generate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SignTx(ctx, "8200a0"); !vault.IsUserRejectedError(err) {
		t.Fatalf("expected UserRejected on cancelled context, got %v", err)
	}
}

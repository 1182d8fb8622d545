package vault

import (
	"strings"
	"testing"

	"github.com/misterlabs/agentvault/pkg/cardano"
)

const (
	vaultAddrMainnet  cardano.Address = "addr1wxp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gse3d3ft"
	payoutAddrMainnet cardano.Address = "addr1v8uaegs6djpxaj9vkn8njh9uys63jdaluetqkf5r4w95zhcucvhfc"
)

func mkUtxo(hashByte string, index uint32, lovelace uint64) Utxo {
	return Utxo{
		TxHash:      strings.Repeat(hashByte, 32),
		OutputIndex: index,
		Address:     vaultAddrMainnet,
		Value:       Value{Lovelace: lovelace},
	}
}

func TestSelectAllTakesEverySingleUtxo(t *testing.T) {
	utxos := []Utxo{
		mkUtxo("11", 0, 10_000_000),
		mkUtxo("22", 1, 1_000_000),
		mkUtxo("33", 0, 5_000_000),
	}
	sel, err := SelectAll(utxos)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	if len(sel.Selected) != 3 {
		t.Fatalf("expected all 3 UTxOs selected, got %d", len(sel.Selected))
	}
	if sel.Total != 16_000_000 {
		t.Fatalf("total = %d, want 16000000", sel.Total)
	}
	if sel.Change != 0 {
		t.Fatalf("full-balance selection must have zero change, got %d", sel.Change)
	}
}

func TestSelectAllEmpty(t *testing.T) {
	_, err := SelectAll(nil)
	if !IsError(err, NoFundsAtAddress) {
		t.Fatalf("expected NoFundsAtAddress, got %v", err)
	}
}

func TestSelectWithdrawalAccumulatesUntilCovered(t *testing.T) {
	// 10 ADA + 1 ADA at the address; withdrawing 10.5 ADA needs both.
	utxos := []Utxo{
		mkUtxo("22", 1, 1_000_000),
		mkUtxo("11", 0, 10_000_000),
	}
	sel, err := SelectWithdrawal(utxos, 10_500_000, 200_000, 1_000_000)
	if err != nil {
		t.Fatalf("SelectWithdrawal: %v", err)
	}
	if len(sel.Selected) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(sel.Selected))
	}
	if sel.Total != 11_000_000 {
		t.Fatalf("total = %d, want 11000000", sel.Total)
	}
	// change 300000 is below the minimum output: folded into the fee
	if sel.Change != 0 || sel.DustFolded != 300_000 {
		t.Fatalf("change=%d dust=%d, want 0/300000", sel.Change, sel.DustFolded)
	}
}

func TestSelectWithdrawalPrefersLargest(t *testing.T) {
	utxos := []Utxo{
		mkUtxo("11", 0, 2_000_000),
		mkUtxo("22", 0, 50_000_000),
		mkUtxo("33", 0, 3_000_000),
	}
	sel, err := SelectWithdrawal(utxos, 10_000_000, 200_000, 1_000_000)
	if err != nil {
		t.Fatalf("SelectWithdrawal: %v", err)
	}
	if len(sel.Selected) != 1 || sel.Selected[0].Value.Lovelace != 50_000_000 {
		t.Fatalf("expected the single 50 ADA UTxO, got %+v", sel.Selected)
	}
	if sel.Change != 50_000_000-10_000_000-200_000 {
		t.Fatalf("change = %d", sel.Change)
	}
	if sel.DustFolded != 0 {
		t.Fatalf("unexpected dust fold: %d", sel.DustFolded)
	}
}

func TestSelectWithdrawalInsufficientByOneLovelace(t *testing.T) {
	utxos := []Utxo{
		mkUtxo("11", 0, 10_000_000),
		mkUtxo("22", 1, 1_000_000),
	}
	// exactly the balance is fine with no fee...
	if _, err := SelectWithdrawal(utxos, 11_000_000, 0, 1_000_000); err != nil {
		t.Fatalf("exact-balance withdrawal should select: %v", err)
	}
	// ...one more lovelace is not
	_, err := SelectWithdrawal(utxos, 11_000_001, 0, 1_000_000)
	if !IsInsufficientFundsError(err) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

func TestSelectWithdrawalRejectsZeroAmount(t *testing.T) {
	_, err := SelectWithdrawal([]Utxo{mkUtxo("11", 0, 5_000_000)}, 0, 200_000, 1_000_000)
	if !IsError(err, BadRequest) {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestSelectWithdrawalEmpty(t *testing.T) {
	_, err := SelectWithdrawal(nil, 1_000_000, 0, 1_000_000)
	if !IsError(err, NoFundsAtAddress) {
		t.Fatalf("expected NoFundsAtAddress, got %v", err)
	}
}

func TestSelectFeeInputsSkipsReserved(t *testing.T) {
	utxos := []Utxo{
		mkUtxo("11", 0, 5_000_000),
		mkUtxo("22", 0, 4_000_000),
	}
	taken := NewUtxoSet()
	taken.Add(utxos[0].TxHash, utxos[0].OutputIndex)

	sel, err := SelectFeeInputs(utxos, 1_000_000, taken)
	if err != nil {
		t.Fatalf("SelectFeeInputs: %v", err)
	}
	if len(sel.Selected) != 1 || sel.Selected[0].TxHash != utxos[1].TxHash {
		t.Fatalf("expected the unreserved UTxO, got %+v", sel.Selected)
	}
}

func TestSelectFeeInputsInsufficient(t *testing.T) {
	_, err := SelectFeeInputs([]Utxo{mkUtxo("11", 0, 100_000)}, 1_000_000, NewUtxoSet())
	if !IsInsufficientFundsError(err) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

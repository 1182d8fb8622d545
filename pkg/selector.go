package vault

import (
	"sort"
)

// UTxO selection for script withdrawals.
//
// Script inputs are never chosen by wallet-style heuristics that can
// silently drop members of the set: every script-locked UTxO needs its own
// witness, and a truncated selection is exactly the "only the first UTxO
// gets processed" failure this engine exists to prevent. A full-balance
// withdrawal therefore takes the entire set, explicitly; a partial
// withdrawal accumulates in descending value order and fails loudly when
// the whole set cannot cover the target.

// Selection is the outcome of input selection.
type Selection struct {
	Selected   []Utxo
	Total      uint64 // lovelace across Selected
	Change     uint64 // lovelace returned to the source address; 0 when folded
	DustFolded uint64 // sub-minimum change folded into the fee
}

// SelectAll takes the complete UTxO set: the full-balance withdrawal path.
// Change is always zero; the caller's output is total minus fee.
func SelectAll(utxos []Utxo) (Selection, error) {
	if len(utxos) == 0 {
		return Selection{}, NewErrWithAction(NoFundsAtAddress, "fund the address",
			"no UTxOs to select")
	}
	total, err := SumUtxos(utxos)
	if err != nil {
		return Selection{}, err
	}
	selected := make([]Utxo, len(utxos))
	copy(selected, utxos)
	return Selection{Selected: selected, Total: total.Lovelace}, nil
}

// SelectWithdrawal picks inputs covering targetLovelace + feeEstimate from
// a script address, in descending value order, and computes change.
// Change below minUtxo is folded into the fee rather than emitted as a
// sub-minimum output the ledger would reject.
func SelectWithdrawal(utxos []Utxo, targetLovelace, feeEstimate, minUtxo uint64) (Selection, error) {
	if len(utxos) == 0 {
		return Selection{}, NewErrWithAction(NoFundsAtAddress, "fund the address",
			"no UTxOs available for withdrawal")
	}
	if targetLovelace == 0 {
		return Selection{}, NewErr(BadRequest, "withdrawal amount must be positive")
	}
	need, err := AddChecked(targetLovelace, feeEstimate)
	if err != nil {
		return Selection{}, err
	}

	ordered := make([]Utxo, len(utxos))
	copy(ordered, utxos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Value.Lovelace > ordered[j].Value.Lovelace
	})

	var selected []Utxo
	var total uint64
	for _, u := range ordered {
		if total >= need {
			break
		}
		total, err = AddChecked(total, u.Value.Lovelace)
		if err != nil {
			return Selection{}, err
		}
		selected = append(selected, u)
	}
	if total < need {
		available, sumErr := SumUtxos(utxos)
		if sumErr != nil {
			return Selection{}, sumErr
		}
		return Selection{}, NewErrWithAction(InsufficientFunds, "reduce the amount or fund the address",
			"insufficient funds: need %d lovelace (amount %d + fee %d), only %d available across %d UTxOs",
			need, targetLovelace, feeEstimate, available.Lovelace, len(utxos))
	}

	sel := Selection{Selected: selected, Total: total}
	change := total - need
	if change > 0 && change < minUtxo {
		// dust: fold into the fee, never emit a sub-minimum output
		sel.DustFolded = change
		change = 0
	}
	sel.Change = change
	return sel, nil
}

// SelectFeeInputs runs ordinary largest-first selection over key-locked
// wallet UTxOs to cover a fee. Acceptable here because key witnesses are
// per-transaction, not per-input.
func SelectFeeInputs(utxos []Utxo, feeLovelace uint64, taken UtxoSet) (Selection, error) {
	ordered := make([]Utxo, len(utxos))
	copy(ordered, utxos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Value.Lovelace > ordered[j].Value.Lovelace
	})

	var selected []Utxo
	var total uint64
	var err error
	for _, u := range ordered {
		if total >= feeLovelace {
			break
		}
		if taken.Includes(u.TxHash, u.OutputIndex) {
			continue
		}
		total, err = AddChecked(total, u.Value.Lovelace)
		if err != nil {
			return Selection{}, err
		}
		selected = append(selected, u)
	}
	if total < feeLovelace {
		return Selection{}, NewErrWithAction(InsufficientFunds, "fund the fee wallet",
			"fee wallet cannot cover %d lovelace (has %d unreserved)", feeLovelace, total)
	}
	return Selection{Selected: selected, Total: total, Change: total - feeLovelace}, nil
}

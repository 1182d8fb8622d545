package vault

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/misterlabs/agentvault/pkg/cardano"
)

func cborDecode(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// Script-witnessed transaction assembly.
//
// The order-sensitive part: the ledger validates redeemers against the
// canonically sorted input list (by tx hash, then output index), not the
// order the caller supplied. Inputs are sorted first and redeemer indices
// assigned from post-sort positions, so assembly produces identical bytes
// for any caller ordering. The script-data hash is computed last, after
// the redeemers are final; merging signatures later does not disturb it.

// TxDraft is an assembled, unsigned (or partially signed) transaction.
type TxDraft struct {
	Tx              cardano.Tx
	TxID            string // hex, hash of the body
	UnsignedCborHex string // full tx with witness template, for the signer
	Fee             uint64
	TotalIn         uint64
	TotalOut        uint64
	ChangeLovelace  uint64
	DustFolded      uint64
}

// AssembleParams carries everything assembly needs. ScriptBytes, Version,
// RedeemerData and ExUnits come from the registry entry; LangViews is the
// opaque pre-encoded cost-model section bound into the script-data hash.
type AssembleParams struct {
	ScriptBytes  []byte
	Version      cardano.ScriptVersion
	RedeemerData cardano.Data
	ExUnits      cardano.ExUnits
	LangViews    []byte
	TTL          uint64
	Chain        *cardano.ChainParams
}

// AssembleWithdrawal builds the spending transaction: the selected script
// inputs, one output of amount to the destination, change back to the
// source script address when the selector produced any, and one redeemer
// per script input. Fee must already be consistent with the selection:
// conservation (sum in == sum out + fee) is checked exactly, per asset.
func AssembleWithdrawal(sel Selection, to cardano.Address, amount uint64, fee uint64, p AssembleParams) (TxDraft, error) {
	if len(p.ScriptBytes) == 0 {
		return TxDraft{}, NewErr(MissingWitness, "no script bytes for script-locked inputs")
	}
	if !p.Version.Valid() {
		return TxDraft{}, NewErr(MissingWitness, "invalid script version %d", int(p.Version))
	}
	if p.RedeemerData == nil {
		return TxDraft{}, NewErr(MissingWitness, "no redeemer payload for script-locked inputs")
	}
	if len(sel.Selected) == 0 {
		return TxDraft{}, NewErr(InvalidTxn, "no inputs selected")
	}
	if !cardano.ValidateAddress(to, p.Chain) {
		return TxDraft{}, NewErr(InvalidAddress, "bad destination address %q for network %q", to, p.Chain.AddressHRP)
	}

	sourceAddr := sel.Selected[0].Address

	// conservation: inputs == amount + change + fee, exactly
	totalIn, err := SumUtxos(sel.Selected)
	if err != nil {
		return TxDraft{}, err
	}
	outSum, err := AddChecked(amount, sel.Change)
	if err != nil {
		return TxDraft{}, err
	}
	outPlusFee, err := AddChecked(outSum, fee)
	if err != nil {
		return TxDraft{}, err
	}
	if totalIn.Lovelace != outPlusFee {
		return TxDraft{}, NewErr(ValueArithmeticError,
			"value not conserved: inputs %d != amount %d + change %d + fee %d",
			totalIn.Lovelace, amount, sel.Change, fee)
	}

	outputs := []cardano.TxOutput{{Address: to, Coin: amount}}
	if sel.Change > 0 {
		change := cardano.TxOutput{Address: sourceAddr, Coin: sel.Change}
		if len(totalIn.Assets) > 0 {
			change.Assets = totalIn.Assets
		}
		outputs = append(outputs, change)
	} else if len(totalIn.Assets) > 0 {
		// no change output to carry them: assets ride along to the destination
		outputs[0].Assets = totalIn.Assets
	}

	return assemble(sel.Selected, outputs, fee, sel, p)
}

// assemble does the order-sensitive work shared by all withdrawal shapes.
func assemble(inputs []Utxo, outputs []cardano.TxOutput, fee uint64, sel Selection, p AssembleParams) (TxDraft, error) {
	refs := make([]cardano.TxInput, len(inputs))
	for i, u := range inputs {
		ref, err := u.TxInput()
		if err != nil {
			return TxDraft{}, err
		}
		refs[i] = ref
	}

	// canonical order, then redeemer indices from post-sort positions
	sorted := cardano.SortInputsCanonical(refs)
	redeemers := make([]cardano.Redeemer, 0, len(inputs))
	for _, u := range inputs {
		ref, _ := u.TxInput()
		pos := cardano.InputPosition(sorted, ref.TxHash, ref.Index)
		if pos < 0 {
			return TxDraft{}, NewErr(RedeemerIndexError,
				"input %s#%d lost during canonical sort", u.TxHash, u.OutputIndex)
		}
		redeemers = append(redeemers, cardano.Redeemer{
			Tag:     cardano.RedeemerTagSpend,
			Index:   uint32(pos),
			Data:    p.RedeemerData,
			ExUnits: p.ExUnits,
		})
	}
	// redeemers in index order, matching the sorted inputs
	for i := 1; i < len(redeemers); i++ {
		for j := i; j > 0 && redeemers[j].Index < redeemers[j-1].Index; j-- {
			redeemers[j], redeemers[j-1] = redeemers[j-1], redeemers[j]
		}
	}

	tx := cardano.Tx{
		Body: cardano.TxBody{
			Inputs:  sorted,
			Outputs: outputs,
			Fee:     fee,
			TTL:     p.TTL,
		},
	}
	if err := tx.Witness.AttachScript(p.ScriptBytes, p.Version); err != nil {
		return TxDraft{}, NewErr(MissingWitness, "%v", err)
	}
	tx.Witness.Redeemers = redeemers

	// last step: bind redeemers + cost models into the body
	sdh, err := cardano.ComputeScriptDataHash(redeemers, nil, p.LangViews)
	if err != nil {
		return TxDraft{}, NewErr(InvalidTxn, "script data hash: %v", err)
	}
	tx.Body.ScriptDataHash = sdh

	return finishDraft(tx, sel)
}

func finishDraft(tx cardano.Tx, sel Selection) (TxDraft, error) {
	txid, err := tx.Body.TxID()
	if err != nil {
		return TxDraft{}, NewErr(InvalidTxn, "%v", err)
	}
	encoded, err := tx.EncodeTx()
	if err != nil {
		return TxDraft{}, NewErr(InvalidTxn, "%v", err)
	}
	var totalOut uint64
	for _, out := range tx.Body.Outputs {
		totalOut, err = AddChecked(totalOut, out.Coin)
		if err != nil {
			return TxDraft{}, err
		}
	}
	return TxDraft{
		Tx:              tx,
		TxID:            cardano.HexEncode(txid),
		UnsignedCborHex: cardano.HexEncode(encoded),
		Fee:             tx.Body.Fee,
		TotalIn:         sel.Total,
		TotalOut:        totalOut,
		ChangeLovelace:  sel.Change,
		DustFolded:      sel.DustFolded,
	}, nil
}

// AssembleWithdrawAll drains the whole balance to one destination: every
// UTxO is an input, one output of (total - fee) carries everything
// including native assets. The fee is sized iteratively the way wallet
// fee loops work: price the encoding, rebuild, reprice, until stable.
func AssembleWithdrawAll(utxos []Utxo, to cardano.Address, p AssembleParams) (TxDraft, error) {
	sel, err := SelectAll(utxos)
	if err != nil {
		return TxDraft{}, err
	}
	fee := cardano.MinFee(0, p.Chain) // floor; grows below
	for attempt := 0; attempt < 10; attempt++ {
		amount, err := SubChecked(sel.Total, fee)
		if err != nil {
			return TxDraft{}, NewErrWithAction(InsufficientFunds, "fund the address",
				"balance %d cannot cover the fee %d", sel.Total, fee)
		}
		if amount < p.Chain.MinUtxo {
			return TxDraft{}, NewErrWithAction(InsufficientFunds, "fund the address",
				"withdraw-all would leave %d lovelace, below the minimum output %d", amount, p.Chain.MinUtxo)
		}
		draft, err := AssembleWithdrawal(sel, to, amount, fee, p)
		if err != nil {
			return TxDraft{}, err
		}
		size, err := draft.Tx.EstimateSize(1)
		if err != nil {
			return TxDraft{}, NewErr(InvalidTxn, "%v", err)
		}
		needed := cardano.MinFee(size, p.Chain)
		if fee >= needed {
			return draft, nil
		}
		fee = needed
	}
	return TxDraft{}, NewErr(InvalidTxn, "fee sizing did not stabilize after 10 attempts")
}

// EstimateWithdrawalFee prices a withdrawal of nInputs script inputs and
// up to two outputs with signing headroom, for use as the selector's fee
// estimate before the real transaction exists.
func EstimateWithdrawalFee(nInputs int, scriptLen int, p AssembleParams) uint64 {
	// input ~40 bytes, output ~65, redeemer ~24, fixed body/witness overhead
	size := 200 + scriptLen + nInputs*(40+24) + 2*65
	return cardano.MinFee(size, p.Chain)
}

type rawVKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

type rawWitnessSet struct {
	VKeyWitnesses []rawVKeyWitness `cbor:"0,keyasint,omitempty"`
}

// MergeWitness merges an external signer's witness set (CBOR hex, CIP-30
// shape) into the draft and re-encodes. Signatures do not participate in
// the script-data hash, so the body is untouched and the tx id is stable.
func (d *TxDraft) MergeWitness(witnessCborHex string) error {
	raw, err := cardano.HexDecode(witnessCborHex)
	if err != nil {
		return NewErr(SigningError, "witness is not valid hex: %v", err)
	}
	var ws rawWitnessSet
	if err := cborDecode(raw, &ws); err != nil {
		return NewErr(SigningError, "cannot decode witness set: %v", err)
	}
	if len(ws.VKeyWitnesses) == 0 {
		return NewErr(SigningError, "witness set contains no signatures")
	}
	for _, w := range ws.VKeyWitnesses {
		if len(w.VKey) != 32 || len(w.Signature) != 64 {
			return NewErr(SigningError, "malformed vkey witness")
		}
		d.Tx.Witness.VKeyWitnesses = append(d.Tx.Witness.VKeyWitnesses, cardano.VKeyWitness{
			VKey:      w.VKey,
			Signature: w.Signature,
		})
	}
	return d.reencode()
}

// MergeVKeyWitnesses merges locally produced witnesses (pkg/signer).
func (d *TxDraft) MergeVKeyWitnesses(wits []cardano.VKeyWitness) error {
	d.Tx.Witness.VKeyWitnesses = append(d.Tx.Witness.VKeyWitnesses, wits...)
	return d.reencode()
}

func (d *TxDraft) reencode() error {
	encoded, err := d.Tx.EncodeTx()
	if err != nil {
		return NewErr(InvalidTxn, "%v", err)
	}
	d.UnsignedCborHex = cardano.HexEncode(encoded)
	return nil
}

// SignedCborHex returns the current encoding; valid for submission once
// witnesses are merged.
func (d *TxDraft) SignedCborHex() string {
	return d.UnsignedCborHex
}

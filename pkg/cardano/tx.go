package cardano

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Deterministic encoder shared by all transaction serialization. The ledger
// recomputes hashes over our exact bytes, so encoding must be canonical.
var cborEnc cbor.EncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor enc mode: " + err.Error())
	}
	return em
}()

// TxInput references a UTxO being spent.
type TxInput struct {
	TxHash []byte // 32-byte transaction id
	Index  uint32
}

// TxOutput pays Coin lovelace (plus optional native assets) to Address.
type TxOutput struct {
	Address Address
	Coin    uint64
	Assets  map[string]uint64 // asset unit (policy+name hex) -> quantity
}

// ExUnits is the execution budget claimed by a redeemer.
type ExUnits struct {
	Mem   uint64
	Steps uint64
}

// RedeemerTag selects what a redeemer is attached to. Spending script
// inputs is the only tag this engine produces.
type RedeemerTag uint8

const RedeemerTagSpend RedeemerTag = 0

// Redeemer is the argument for one script input. Index is the position of
// that input in the canonically sorted input list; it is assigned during
// assembly, never by callers.
type Redeemer struct {
	Tag     RedeemerTag
	Index   uint32
	Data    Data
	ExUnits ExUnits
}

// VKeyWitness is an ed25519 signature over the transaction id.
type VKeyWitness struct {
	VKey      []byte // 32 bytes
	Signature []byte // 64 bytes
}

// WitnessSet carries everything that proves the right to spend the inputs.
type WitnessSet struct {
	VKeyWitnesses   []VKeyWitness
	PlutusV1Scripts [][]byte
	PlutusV2Scripts [][]byte
	PlutusV3Scripts [][]byte
	Datums          []Data
	Redeemers       []Redeemer
}

// TxBody is the signed-over portion of a transaction.
type TxBody struct {
	Inputs         []TxInput
	Outputs        []TxOutput
	Fee            uint64
	TTL            uint64 // absolute slot; 0 = no expiry
	ScriptDataHash []byte // binds redeemers+datums+cost models; nil when no scripts
}

// Tx is a full (possibly partially witnessed) transaction.
type Tx struct {
	Body    TxBody
	Witness WitnessSet
}

// SortInputsCanonical orders inputs the way the ledger does before
// assigning redeemer indices: by tx hash bytes, then by output index.
// Returns a new slice; the caller's order is not touched.
func SortInputsCanonical(inputs []TxInput) []TxInput {
	sorted := make([]TxInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].TxHash, sorted[j].TxHash); c != 0 {
			return c < 0
		}
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// InputPosition finds the position of (txHash, index) in a sorted input
// list, or -1.
func InputPosition(sorted []TxInput, txHash []byte, index uint32) int {
	for i, in := range sorted {
		if in.Index == index && bytes.Equal(in.TxHash, txHash) {
			return i
		}
	}
	return -1
}

func (in TxInput) cborValue() interface{} {
	return []interface{}{in.TxHash, in.Index}
}

func (out TxOutput) cborValue() ([]byte, interface{}, error) {
	addrBytes, err := DecodeAddress(out.Address)
	if err != nil {
		return nil, nil, err
	}
	var value interface{} = out.Coin
	if len(out.Assets) > 0 {
		// multiasset: { policyID : { assetName : quantity } }
		ma := map[cbor.ByteString]map[cbor.ByteString]uint64{}
		for unit, qty := range out.Assets {
			raw, err := HexDecode(unit)
			if err != nil || len(raw) < 28 {
				return nil, nil, fmt.Errorf("bad asset unit %q", unit)
			}
			policy := cbor.ByteString(raw[:28])
			name := cbor.ByteString(raw[28:])
			if ma[policy] == nil {
				ma[policy] = map[cbor.ByteString]uint64{}
			}
			ma[policy][name] = qty
		}
		value = []interface{}{out.Coin, ma}
	}
	return addrBytes, value, nil
}

// EncodeBody serializes the transaction body deterministically.
func (body *TxBody) EncodeBody() ([]byte, error) {
	inputs := make([]interface{}, len(body.Inputs))
	for i, in := range body.Inputs {
		if len(in.TxHash) != TxHashLen {
			return nil, fmt.Errorf("input %d: tx hash must be %d bytes, got %d", i, TxHashLen, len(in.TxHash))
		}
		inputs[i] = in.cborValue()
	}
	outputs := make([]interface{}, len(body.Outputs))
	for i, out := range body.Outputs {
		addrBytes, value, err := out.cborValue()
		if err != nil {
			return nil, fmt.Errorf("output %d: %v", i, err)
		}
		// babbage map-form output
		outputs[i] = map[uint64]interface{}{0: addrBytes, 1: value}
	}
	m := map[uint64]interface{}{
		0: inputs,
		1: outputs,
		2: body.Fee,
	}
	if body.TTL != 0 {
		m[3] = body.TTL
	}
	if len(body.ScriptDataHash) != 0 {
		if len(body.ScriptDataHash) != TxHashLen {
			return nil, fmt.Errorf("script data hash must be %d bytes, got %d", TxHashLen, len(body.ScriptDataHash))
		}
		m[11] = body.ScriptDataHash
	}
	return cborEnc.Marshal(m)
}

func encodeRedeemers(redeemers []Redeemer) ([]byte, error) {
	items := make([]interface{}, len(redeemers))
	for i, r := range redeemers {
		data, err := r.Data.cborValue()
		if err != nil {
			return nil, fmt.Errorf("redeemer %d: %v", i, err)
		}
		items[i] = []interface{}{
			uint64(r.Tag), r.Index, data,
			[]interface{}{r.ExUnits.Mem, r.ExUnits.Steps},
		}
	}
	return cborEnc.Marshal(items)
}

func encodeDatums(datums []Data) ([]byte, error) {
	items := make([]interface{}, len(datums))
	for i, d := range datums {
		v, err := d.cborValue()
		if err != nil {
			return nil, fmt.Errorf("datum %d: %v", i, err)
		}
		items[i] = v
	}
	return cborEnc.Marshal(items)
}

// EncodeWitnessSet serializes the witness set deterministically.
func (w *WitnessSet) EncodeWitnessSet() ([]byte, error) {
	m := map[uint64]interface{}{}
	if len(w.VKeyWitnesses) > 0 {
		wits := make([]interface{}, len(w.VKeyWitnesses))
		for i, vw := range w.VKeyWitnesses {
			if len(vw.VKey) != 32 || len(vw.Signature) != 64 {
				return nil, fmt.Errorf("vkey witness %d: bad key/signature length", i)
			}
			wits[i] = []interface{}{vw.VKey, vw.Signature}
		}
		m[0] = wits
	}
	if len(w.PlutusV1Scripts) > 0 {
		m[3] = w.PlutusV1Scripts
	}
	if len(w.Datums) > 0 {
		items := make([]interface{}, len(w.Datums))
		for i, d := range w.Datums {
			v, err := d.cborValue()
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		m[4] = items
	}
	if len(w.Redeemers) > 0 {
		items := make([]interface{}, len(w.Redeemers))
		for i, r := range w.Redeemers {
			data, err := r.Data.cborValue()
			if err != nil {
				return nil, err
			}
			items[i] = []interface{}{
				uint64(r.Tag), r.Index, data,
				[]interface{}{r.ExUnits.Mem, r.ExUnits.Steps},
			}
		}
		m[5] = items
	}
	if len(w.PlutusV2Scripts) > 0 {
		m[6] = w.PlutusV2Scripts
	}
	if len(w.PlutusV3Scripts) > 0 {
		m[7] = w.PlutusV3Scripts
	}
	return cborEnc.Marshal(m)
}

// AttachScript places script bytes under the witness key for its version.
func (w *WitnessSet) AttachScript(scriptBytes []byte, version ScriptVersion) error {
	switch version {
	case ScriptV1:
		w.PlutusV1Scripts = append(w.PlutusV1Scripts, scriptBytes)
	case ScriptV2:
		w.PlutusV2Scripts = append(w.PlutusV2Scripts, scriptBytes)
	case ScriptV3:
		w.PlutusV3Scripts = append(w.PlutusV3Scripts, scriptBytes)
	default:
		return fmt.Errorf("invalid script version %d", int(version))
	}
	return nil
}

// ComputeScriptDataHash hashes the redeemers, datums (when present) and the
// pre-encoded cost-model language views into the digest bound at body
// key 11. Must be recomputed whenever redeemers or datums change; the
// ledger rejects a stale hash only at submission time.
func ComputeScriptDataHash(redeemers []Redeemer, datums []Data, langViews []byte) ([]byte, error) {
	if len(redeemers) == 0 {
		return nil, fmt.Errorf("script data hash requires at least one redeemer")
	}
	redeemerBytes, err := encodeRedeemers(redeemers)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(redeemerBytes)
	if len(datums) > 0 {
		datumBytes, err := encodeDatums(datums)
		if err != nil {
			return nil, err
		}
		buf.Write(datumBytes)
	}
	buf.Write(langViews)
	return Blake2b256(buf.Bytes()), nil
}

// TxID is the blake2b-256 hash of the encoded body; this is what gets signed.
func (body *TxBody) TxID() ([]byte, error) {
	encoded, err := body.EncodeBody()
	if err != nil {
		return nil, err
	}
	return Blake2b256(encoded), nil
}

// EncodeTx serializes the full transaction: [body, witnesses, valid, aux].
func (tx *Tx) EncodeTx() ([]byte, error) {
	body, err := tx.Body.EncodeBody()
	if err != nil {
		return nil, err
	}
	wits, err := tx.Witness.EncodeWitnessSet()
	if err != nil {
		return nil, err
	}
	return cborEnc.Marshal([]interface{}{
		cbor.RawMessage(body), cbor.RawMessage(wits), true, nil,
	})
}

// MinFee prices a transaction of the given encoded size.
func MinFee(sizeBytes int, chain *ChainParams) uint64 {
	return chain.MinFeeA*uint64(sizeBytes) + chain.MinFeeB
}

// EstimateSize returns the encoded size plus headroom for witnesses that
// are not attached yet (vkey witness ~102 bytes each).
func (tx *Tx) EstimateSize(pendingSignatures int) (int, error) {
	encoded, err := tx.EncodeTx()
	if err != nil {
		return 0, err
	}
	return len(encoded) + pendingSignatures*102, nil
}

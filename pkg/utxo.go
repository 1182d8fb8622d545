package vault

import (
	"math"

	"github.com/misterlabs/agentvault/pkg/cardano"
	"github.com/shopspring/decimal"
)

// LovelacePerAda converts between the integer on-chain unit and the
// ADA-denominated amounts shown on API/CLI surfaces.
const LovelacePerAda = 1_000_000

// Value is a multi-asset amount. Lovelace is the distinguished native
// asset; everything else is keyed by asset unit (policy id + asset name,
// hex). All arithmetic is checked: conservation bugs must surface as
// errors, never wrap around.
type Value struct {
	Lovelace uint64
	Assets   map[string]uint64
}

// Utxo is an Unspent Transaction Output observed at an address.
// Immutable once observed; the ledger is the source of truth for whether
// it is still spendable — this system keeps no spent-set of its own
// beyond the lifetime of a single query snapshot.
type Utxo struct {
	TxHash      string // 32-byte transaction id, hex - part of unique key
	OutputIndex uint32 // output position - part of unique key
	Address     cardano.Address
	Value       Value
	DatumHash   string // optional, hex
	InlineDatum string // optional, CBOR hex
}

// Key returns the (txHash, index) pair identifying this UTxO.
func (u Utxo) Key() (string, uint32) {
	return u.TxHash, u.OutputIndex
}

// TxInput converts the UTxO reference into its transaction-body form.
func (u Utxo) TxInput() (cardano.TxInput, error) {
	hash, err := cardano.HexDecode(u.TxHash)
	if err != nil || len(hash) != cardano.TxHashLen {
		return cardano.TxInput{}, NewErr(InvalidTxn, "utxo %s#%d: bad tx hash", u.TxHash, u.OutputIndex)
	}
	return cardano.TxInput{TxHash: hash, Index: u.OutputIndex}, nil
}

// AddChecked returns a+b, failing on uint64 overflow.
func AddChecked(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, NewErr(ValueArithmeticError, "lovelace addition overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// SubChecked returns a-b, failing on underflow.
func SubChecked(a, b uint64) (uint64, error) {
	if b > a {
		return 0, NewErr(ValueArithmeticError, "lovelace subtraction underflow: %d - %d", a, b)
	}
	return a - b, nil
}

// Add merges another value into a copy of this one.
func (v Value) Add(other Value) (Value, error) {
	lovelace, err := AddChecked(v.Lovelace, other.Lovelace)
	if err != nil {
		return Value{}, err
	}
	out := Value{Lovelace: lovelace}
	if len(v.Assets) > 0 || len(other.Assets) > 0 {
		out.Assets = map[string]uint64{}
		for unit, qty := range v.Assets {
			out.Assets[unit] = qty
		}
		for unit, qty := range other.Assets {
			sum, err := AddChecked(out.Assets[unit], qty)
			if err != nil {
				return Value{}, NewErr(ValueArithmeticError, "asset %s addition overflow", unit)
			}
			out.Assets[unit] = sum
		}
	}
	return out, nil
}

// SumUtxos totals the value across a UTxO set.
func SumUtxos(utxos []Utxo) (Value, error) {
	total := Value{}
	var err error
	for _, u := range utxos {
		total, err = total.Add(u.Value)
		if err != nil {
			return Value{}, err
		}
	}
	return total, nil
}

// Ada renders a lovelace amount as a decimal ADA string for display.
func Ada(lovelace uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lovelace)).Div(decimal.NewFromInt(LovelacePerAda))
}

// ParseAda converts an ADA-denominated decimal string to lovelace.
func ParseAda(ada string) (uint64, error) {
	d, err := decimal.NewFromString(ada)
	if err != nil {
		return 0, NewErr(BadRequest, "bad ADA amount %q: %v", ada, err)
	}
	lovelace := d.Mul(decimal.NewFromInt(LovelacePerAda))
	if !lovelace.IsInteger() || lovelace.IsNegative() {
		return 0, NewErr(BadRequest, "ADA amount %q is not a whole number of lovelace", ada)
	}
	return uint64(lovelace.IntPart()), nil
}

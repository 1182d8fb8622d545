package cardano

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Plutus data values: the argument language of validators. Redeemers and
// datums are trees of these. Constructor values map onto CBOR tags:
//
//	index 0..6     -> tag 121+index, fields as the content array
//	index 7..127   -> tag 1280+(index-7)
//	anything above -> tag 102 with [index, fields]
//
// The constructor index a validator expects (e.g. which index means
// "UserWithdraw") is part of that contract's interface and is carried as
// per-contract configuration, never assumed.
type Data interface {
	cborValue() (interface{}, error)
}

// Constr is a tagged-constructor value.
type Constr struct {
	Index  uint64
	Fields []Data
}

// I is an integer value.
type I int64

// B is a byte-string value.
type B []byte

// List is a list value.
type List []Data

func (c Constr) cborValue() (interface{}, error) {
	fields := make([]interface{}, len(c.Fields))
	for i, f := range c.Fields {
		v, err := f.cborValue()
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	switch {
	case c.Index <= 6:
		return cbor.Tag{Number: 121 + c.Index, Content: fields}, nil
	case c.Index <= 127:
		return cbor.Tag{Number: 1280 + (c.Index - 7), Content: fields}, nil
	default:
		return cbor.Tag{Number: 102, Content: []interface{}{c.Index, fields}}, nil
	}
}

func (i I) cborValue() (interface{}, error) {
	return int64(i), nil
}

func (b B) cborValue() (interface{}, error) {
	if len(b) > 64 {
		// ledger rule: byte strings inside data are chunked at 64 bytes
		return nil, fmt.Errorf("plutus byte string exceeds 64 bytes (%d); chunking not supported", len(b))
	}
	return []byte(b), nil
}

func (l List) cborValue() (interface{}, error) {
	items := make([]interface{}, len(l))
	for i, d := range l {
		v, err := d.cborValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// MarshalData encodes a Plutus data value with deterministic CBOR.
func MarshalData(d Data) ([]byte, error) {
	v, err := d.cborValue()
	if err != nil {
		return nil, err
	}
	return cborEnc.Marshal(v)
}

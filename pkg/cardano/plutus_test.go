package cardano

import (
	"testing"
)

func mustMarshal(t *testing.T, d Data) string {
	b, err := MarshalData(d)
	if err != nil {
		t.Fatalf("MarshalData: %v", err)
	}
	return HexEncode(b)
}

func TestConstrEncoding(t *testing.T) {
	// constructor 0, no fields: tag 121 + empty array
	if got := mustMarshal(t, Constr{Index: 0}); got != "d87980" {
		t.Fatalf("Constr 0: got %s", got)
	}
	// constructor 1 (the other observed UserWithdraw index): tag 122
	if got := mustMarshal(t, Constr{Index: 1}); got != "d87a80" {
		t.Fatalf("Constr 1: got %s", got)
	}
	// constructor 1 with an integer field
	if got := mustMarshal(t, Constr{Index: 1, Fields: []Data{I(42)}}); got != "d87a81182a" {
		t.Fatalf("Constr 1 [42]: got %s", got)
	}
	// constructor 6 is the last of the low tag range
	if got := mustMarshal(t, Constr{Index: 6}); got != "d87f80" {
		t.Fatalf("Constr 6: got %s", got)
	}
	// constructor 7 jumps to tag 1280
	if got := mustMarshal(t, Constr{Index: 7}); got != "d9050080" {
		t.Fatalf("Constr 7: got %s", got)
	}
	// constructor above 127 uses the general form (tag 102)
	if got := mustMarshal(t, Constr{Index: 1000}); got != "d866821903e880" {
		t.Fatalf("Constr 1000: got %s", got)
	}
}

func TestDataEncoding(t *testing.T) {
	if got := mustMarshal(t, I(-1)); got != "20" {
		t.Fatalf("I(-1): got %s", got)
	}
	if got := mustMarshal(t, B([]byte{0xde, 0xad})); got != "42dead" {
		t.Fatalf("B: got %s", got)
	}
	if got := mustMarshal(t, List{I(1), I(2)}); got != "820102" {
		t.Fatalf("List: got %s", got)
	}
	// nested constructor
	nested := Constr{Index: 0, Fields: []Data{Constr{Index: 1, Fields: []Data{B([]byte{0x01})}}}}
	if got := mustMarshal(t, nested); got != "d87981d87a814101" {
		t.Fatalf("nested: got %s", got)
	}
}

func TestDataEncodingLimits(t *testing.T) {
	long := make([]byte, 65)
	if _, err := MarshalData(B(long)); err == nil {
		t.Fatalf("expected error for >64 byte string")
	}
	if _, err := MarshalData(Constr{Index: 0, Fields: []Data{B(long)}}); err == nil {
		t.Fatalf("expected nested length error to propagate")
	}
}

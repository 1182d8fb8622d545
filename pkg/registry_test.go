package vault

import (
	"testing"

	"github.com/misterlabs/agentvault/pkg/cardano"
)

func testEntry(t *testing.T) ContractEntry {
	t.Helper()
	return ContractEntry{
		ID:            "e1",
		Purpose:       "agent_vault",
		ScriptHex:     vaultScriptHex,
		ScriptVersion: cardano.ScriptV2,
		ScriptHash:    "83a2d61669af82b7eb7d4ad30337951316e8a2729574fc37dfd50aa2",
		Address:       vaultAddrMainnet,
		Status:        StatusTesting,
	}
}

func TestStatusMachine(t *testing.T) {
	allowed := []struct{ from, to ContractStatus }{
		{StatusTesting, StatusActive},
		{StatusTesting, StatusDeprecated},
		{StatusActive, StatusDeprecated},
		{StatusTesting, StatusStuck},
		{StatusActive, StatusStuck},
		{StatusDeprecated, StatusStuck},
	}
	for _, c := range allowed {
		if !ValidTransition(c.from, c.to) {
			t.Errorf("%s -> %s should be allowed", c.from, c.to)
		}
	}
	forbidden := []struct{ from, to ContractStatus }{
		{StatusActive, StatusTesting},
		{StatusDeprecated, StatusActive},
		{StatusDeprecated, StatusTesting},
		{StatusStuck, StatusTesting},
		{StatusStuck, StatusActive},
		{StatusStuck, StatusStuck},
	}
	for _, c := range forbidden {
		if ValidTransition(c.from, c.to) {
			t.Errorf("%s -> %s must be rejected", c.from, c.to)
		}
	}
}

func TestVerifyIdentityGood(t *testing.T) {
	e := testEntry(t)
	if err := e.VerifyIdentity(&cardano.MainNetChain); err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}
}

func TestVerifyIdentityTamperedHash(t *testing.T) {
	e := testEntry(t)
	e.ScriptHash = "00" + e.ScriptHash[2:]
	err := e.VerifyIdentity(&cardano.MainNetChain)
	if !IsError(err, ScriptIdentityMismatch) {
		t.Fatalf("expected ScriptIdentityMismatch, got %v", err)
	}
}

func TestVerifyIdentityWrongVersion(t *testing.T) {
	// same bytes hashed under the V1 tag give a different hash, so a V1
	// entry claiming the V2 identity must fail
	e := testEntry(t)
	e.ScriptVersion = cardano.ScriptV1
	err := e.VerifyIdentity(&cardano.MainNetChain)
	if !IsError(err, ScriptIdentityMismatch) {
		t.Fatalf("expected ScriptIdentityMismatch, got %v", err)
	}
}

func TestExUnitsDefaults(t *testing.T) {
	e := testEntry(t)
	eu := e.ExUnits(&cardano.MainNetChain)
	if eu.Mem != cardano.MainNetChain.MaxExMem/2 || eu.Steps != cardano.MainNetChain.MaxExSteps/2 {
		t.Fatalf("default ex-units wrong: %+v", eu)
	}
	e.ExUnitsMem, e.ExUnitsSteps = 123, 456
	eu = e.ExUnits(&cardano.MainNetChain)
	if eu.Mem != 123 || eu.Steps != 456 {
		t.Fatalf("configured ex-units not honored: %+v", eu)
	}
}

func TestWithdrawRedeemerConstructor(t *testing.T) {
	e := testEntry(t)
	b, err := cardano.MarshalData(e.WithdrawRedeemer())
	if err != nil {
		t.Fatalf("MarshalData: %v", err)
	}
	if cardano.HexEncode(b) != "d87980" {
		t.Fatalf("constr 0 encoded as %s", cardano.HexEncode(b))
	}
	e.WithdrawConstr = 1
	b, _ = cardano.MarshalData(e.WithdrawRedeemer())
	if cardano.HexEncode(b) != "d87a80" {
		t.Fatalf("constr 1 encoded as %s", cardano.HexEncode(b))
	}
}

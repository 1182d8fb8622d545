package cardano

import (
	"bytes"
	"fmt"
)

// ScriptVersion selects the Plutus language of a validator. The version is
// part of the script's identity: the same bytes hashed under a different
// version produce a different script hash, and therefore a different address.
type ScriptVersion int

const (
	ScriptV1 ScriptVersion = 1
	ScriptV2 ScriptVersion = 2
	ScriptV3 ScriptVersion = 3
)

func (v ScriptVersion) Valid() bool {
	return v >= ScriptV1 && v <= ScriptV3
}

func (v ScriptVersion) String() string {
	switch v {
	case ScriptV1:
		return "PlutusV1"
	case ScriptV2:
		return "PlutusV2"
	case ScriptV3:
		return "PlutusV3"
	}
	return fmt.Sprintf("PlutusV?(%d)", int(v))
}

func ParseScriptVersion(s string) (ScriptVersion, error) {
	switch s {
	case "PlutusV1", "v1", "V1", "1":
		return ScriptV1, nil
	case "PlutusV2", "v2", "V2", "2":
		return ScriptV2, nil
	case "PlutusV3", "v3", "V3", "3":
		return ScriptV3, nil
	}
	return 0, fmt.Errorf("unknown script version: %q", s)
}

// ScriptHash is the blake2b-224 digest that identifies a validator on-chain.
type ScriptHash []byte

func (h ScriptHash) String() string {
	return HexEncode(h)
}

// HashScript derives the script hash: blake2b-224 over a single language
// tag byte followed by the raw script bytes. Pure and deterministic;
// never trust a claimed hash without recomputing it through here.
func HashScript(scriptBytes []byte, version ScriptVersion) (ScriptHash, error) {
	if len(scriptBytes) == 0 {
		return nil, fmt.Errorf("HashScript: empty script")
	}
	if !version.Valid() {
		return nil, fmt.Errorf("HashScript: invalid script version %d", int(version))
	}
	tagged := make([]byte, 0, 1+len(scriptBytes))
	tagged = append(tagged, byte(version))
	tagged = append(tagged, scriptBytes...)
	return ScriptHash(Blake2b224(tagged)), nil
}

// ScriptIdentityOf derives the full (hash, address) identity for a script.
// The enterprise form is used: vault contracts carry no staking credential.
func ScriptIdentityOf(scriptBytes []byte, version ScriptVersion, chain *ChainParams) (ScriptHash, Address, error) {
	hash, err := HashScript(scriptBytes, version)
	if err != nil {
		return nil, "", err
	}
	addr, err := EnterpriseScriptAddress(hash, chain)
	if err != nil {
		return nil, "", err
	}
	return hash, addr, nil
}

// VerifyScriptIdentity recomputes the script hash and address from the
// script bytes and compares them against the claimed pair. Both must match
// exactly. This is the gate that keeps funds from being sent to (or sought
// at) an address the script cannot actually unlock.
func VerifyScriptIdentity(claimedHashHex string, claimedAddress Address, scriptBytes []byte, version ScriptVersion, chain *ChainParams) error {
	hash, addr, err := ScriptIdentityOf(scriptBytes, version, chain)
	if err != nil {
		return err
	}
	claimed, err := HexDecode(claimedHashHex)
	if err != nil {
		return fmt.Errorf("script hash is not valid hex: %q", claimedHashHex)
	}
	if !bytes.Equal(claimed, hash) {
		return fmt.Errorf("script hash mismatch: claimed %s, derived %s from %s script bytes",
			claimedHashHex, hash, version)
	}
	if claimedAddress != addr {
		return fmt.Errorf("script address mismatch: claimed %s, derived %s", claimedAddress, addr)
	}
	return nil
}

package cardano

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Address is a bech32-encoded Shelley payment address.
type Address string

// Shelley address header types (high nibble of the first byte).
// The low nibble is the network id.
const (
	addrTypeBaseKeyKey       = 0x0
	addrTypeBaseScriptKey    = 0x1
	addrTypeEnterpriseKey    = 0x6
	addrTypeEnterpriseScript = 0x7
)

// EnterpriseScriptAddress builds a payment address whose only credential is
// the script hash: no staking part, nothing else can spend it.
func EnterpriseScriptAddress(scriptHash ScriptHash, chain *ChainParams) (Address, error) {
	return encodeAddress(addrTypeEnterpriseScript, scriptHash, nil, chain)
}

// BaseScriptAddress builds a script-payment address that also delegates to
// a stake key. The spending condition is identical to the enterprise form;
// only rewards routing differs.
func BaseScriptAddress(scriptHash ScriptHash, stakeKeyHash []byte, chain *ChainParams) (Address, error) {
	if len(stakeKeyHash) != CredentialHashLen {
		return "", fmt.Errorf("stake key hash must be %d bytes, got %d", CredentialHashLen, len(stakeKeyHash))
	}
	return encodeAddress(addrTypeBaseScriptKey, scriptHash, stakeKeyHash, chain)
}

// EnterpriseKeyAddress builds a plain key-credential address (fee wallets).
func EnterpriseKeyAddress(keyHash []byte, chain *ChainParams) (Address, error) {
	if len(keyHash) != CredentialHashLen {
		return "", fmt.Errorf("key hash must be %d bytes, got %d", CredentialHashLen, len(keyHash))
	}
	return encodeAddress(addrTypeEnterpriseKey, keyHash, nil, chain)
}

func encodeAddress(addrType byte, payment []byte, stake []byte, chain *ChainParams) (Address, error) {
	if len(payment) != CredentialHashLen {
		return "", fmt.Errorf("payment credential must be %d bytes, got %d", CredentialHashLen, len(payment))
	}
	raw := make([]byte, 0, 1+len(payment)+len(stake))
	raw = append(raw, addrType<<4|chain.NetworkID)
	raw = append(raw, payment...)
	raw = append(raw, stake...)
	words, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("address encode: %v", err)
	}
	encoded, err := bech32.Encode(chain.AddressHRP, words)
	if err != nil {
		return "", fmt.Errorf("address encode: %v", err)
	}
	return Address(encoded), nil
}

// DecodeAddress returns the raw address bytes (header + credentials) as
// they appear inside a transaction output.
// Cardano addresses exceed the 90-character bech32 limit, hence DecodeNoLimit.
func DecodeAddress(addr Address) ([]byte, error) {
	hrp, words, err := bech32.DecodeNoLimit(string(addr))
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %v", addr, err)
	}
	if hrp != "addr" && hrp != "addr_test" {
		return nil, fmt.Errorf("invalid address %q: unexpected prefix %q", addr, hrp)
	}
	raw, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %v", addr, err)
	}
	if len(raw) != 1+CredentialHashLen && len(raw) != 1+2*CredentialHashLen {
		return nil, fmt.Errorf("invalid address %q: bad payload length %d", addr, len(raw))
	}
	return raw, nil
}

// ValidateAddress checks the address decodes and belongs to the given network.
func ValidateAddress(addr Address, chain *ChainParams) bool {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return false
	}
	return raw[0]&0x0f == chain.NetworkID
}

// PaymentCredential extracts the 28-byte payment credential of an address.
func PaymentCredential(addr Address) ([]byte, error) {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	return raw[1 : 1+CredentialHashLen], nil
}

// IsScriptAddress reports whether the payment credential is a script hash.
func IsScriptAddress(addr Address) bool {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return false
	}
	t := raw[0] >> 4
	return t == addrTypeEnterpriseScript || t == addrTypeBaseScriptKey
}

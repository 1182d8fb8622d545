package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

// interface guard ensures Ed25519Signer implements vault.Signer
var _ vault.Signer = Ed25519Signer{}

// Ed25519Signer signs transactions with a local key: the fee-wallet and
// test-flow path. Production withdrawals are signed by an external wallet
// that receives the unsigned CBOR instead.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// New builds a signer from a 32-byte seed, hex encoded.
func New(seedHex string) (Ed25519Signer, error) {
	seed, err := cardano.HexDecode(strings.TrimSpace(seedHex))
	if err != nil || len(seed) != ed25519.SeedSize {
		return Ed25519Signer{}, vault.NewErr(vault.SigningError, "signing key must be a 32-byte hex seed")
	}
	return Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadKeyFile reads a hex seed from disk.
func LoadKeyFile(path string) (Ed25519Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Ed25519Signer{}, vault.NewErr(vault.SigningError, "cannot read key file %s: %v", path, err)
	}
	return New(string(raw))
}

// Generate creates a fresh random signer.
func Generate() (Ed25519Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Ed25519Signer{}, vault.NewErr(vault.SigningError, "keygen: %v", err)
	}
	return Ed25519Signer{key: key}, nil
}

// PublicKey returns the 32-byte verification key.
func (s Ed25519Signer) PublicKey() []byte {
	return s.key.Public().(ed25519.PublicKey)
}

// KeyHash returns the blake2b-224 payment credential of the key, from
// which the signer's own enterprise address derives.
func (s Ed25519Signer) KeyHash() []byte {
	return cardano.Blake2b224(s.PublicKey())
}

// Address returns the enterprise key address for this signer's credential.
func (s Ed25519Signer) Address(chain *cardano.ChainParams) (cardano.Address, error) {
	return cardano.EnterpriseKeyAddress(s.KeyHash(), chain)
}

// SignTx signs the transaction id (the hash of the body, not of the full
// transaction) and returns a single-entry witness set, CBOR hex.
func (s Ed25519Signer) SignTx(ctx context.Context, unsignedCborHex string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", vault.NewErr(vault.UserRejected, "signing cancelled")
	}
	raw, err := cardano.HexDecode(unsignedCborHex)
	if err != nil {
		return "", vault.NewErr(vault.SigningError, "unsigned tx is not valid hex")
	}
	var parts []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &parts); err != nil || len(parts) < 1 {
		return "", vault.NewErr(vault.SigningError, "unsigned tx is not a transaction array")
	}
	txid := cardano.Blake2b256(parts[0])
	sig := ed25519.Sign(s.key, txid)

	witness := map[uint64]interface{}{
		0: [][]interface{}{{s.PublicKey(), sig}},
	}
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		return "", vault.NewErr(vault.SigningError, "cbor: %v", err)
	}
	encoded, err := mode.Marshal(witness)
	if err != nil {
		return "", vault.NewErr(vault.SigningError, "cbor: %v", err)
	}
	return cardano.HexEncode(encoded), nil
}

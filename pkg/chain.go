package vault

import (
	"context"

	"github.com/misterlabs/agentvault/pkg/cardano"
)

// AddressInfo is the balance summary for an address.
type AddressInfo struct {
	Address cardano.Address
	Balance Value
	// UtxoCount is how many outputs currently sit at the address.
	UtxoCount int
}

// TxStatus reports where a submitted transaction stands.
type TxStatus struct {
	TxHash        string
	InLedger      bool
	Confirmations int
}

// ChainIndex is the external chain-indexer this engine consumes
// (Blockfrost-shaped). Implementations live in pkg/ledger; everything in
// this package depends only on the interface.
type ChainIndex interface {
	// GetAddressInfo returns the balance at an address.
	// Returns a NotFound error when the address has never received funds.
	GetAddressInfo(ctx context.Context, addr cardano.Address) (AddressInfo, error)

	// GetUtxos lists the unspent outputs at an address. A later
	// submission against a stale snapshot fails with BadInputsUTxO,
	// which is handled by re-querying and rebuilding.
	GetUtxos(ctx context.Context, addr cardano.Address) ([]Utxo, error)

	// SubmitTx broadcasts a fully witnessed transaction.
	// Transport failures come back as NetworkError (retryable); ledger
	// validation rejections come back as LedgerRejection with the
	// classified rule name in the message.
	SubmitTx(ctx context.Context, signedCborHex string) (txHash string, err error)

	// GetTxStatus reports whether a transaction has reached the ledger.
	GetTxStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// Signer produces witnesses for a transaction. The production signer is an
// external wallet (browser extension); pkg/signer provides a local
// ed25519 implementation for fee-wallet and test flows.
type Signer interface {
	// SignTx returns the CBOR-hex witness set for the unsigned
	// transaction. A declined signature is a UserRejected error: a clean
	// cancellation, not a fault.
	SignTx(ctx context.Context, unsignedCborHex string) (witnessCborHex string, err error)
}

package vault

// Store is the persisted contract registry. One record per registered
// script/address pair, plus an append-only audit trail of status changes.
// Implementations must serialize writes: two orchestrations must not
// register conflicting entries concurrently.
type Store interface {
	// AddContract stores a new registry entry.
	// Fails with AlreadyExists when the id is taken.
	AddContract(entry ContractEntry) error

	// GetContract returns the entry with the given id.
	GetContract(id string) (ContractEntry, error)

	// GetActiveContract returns the single 'active' entry for a purpose,
	// or NotFound.
	GetActiveContract(purpose string) (ContractEntry, error)

	// ListContracts returns all entries, newest first.
	ListContracts() ([]ContractEntry, error)

	// UpdateContractStatus appends a status change and updates the entry.
	// Rejects transitions the status machine forbids; history is never
	// rewritten.
	UpdateContractStatus(id string, to ContractStatus, notes string) error

	// SetDeploymentTx records the transaction that funded the contract.
	SetDeploymentTx(id string, txHash string) error

	// SetBalanceSnapshot records the last observed balance.
	SetBalanceSnapshot(id string, lovelace uint64) error

	// GetAuditTrail returns the status history for an entry, oldest first.
	GetAuditTrail(id string) ([]StatusChange, error)

	Close()
}

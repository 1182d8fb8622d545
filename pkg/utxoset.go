package vault

// Composite key for 'taken' Set.
type key struct {
	TxHash      string // Transaction ID
	OutputIndex uint32 // Transaction output number
}

// UtxoSet tracks UTxOs already taken during selection.
type UtxoSet struct {
	taken map[key]bool
}

func NewUtxoSet() UtxoSet {
	return UtxoSet{
		taken: map[key]bool{},
	}
}

func (u *UtxoSet) Add(txHash string, outputIndex uint32) {
	u.taken[key{TxHash: txHash, OutputIndex: outputIndex}] = true
}

func (u *UtxoSet) Includes(txHash string, outputIndex uint32) bool {
	return u.taken[key{TxHash: txHash, OutputIndex: outputIndex}]
}

func (u *UtxoSet) Len() int {
	return len(u.taken)
}

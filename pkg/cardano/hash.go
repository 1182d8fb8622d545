package cardano

import (
	"golang.org/x/crypto/blake2b"
)

// Cardano uses blake2b-224 for credentials (key and script hashes)
// and blake2b-256 for transaction ids and the script-data hash.

const (
	CredentialHashLen = 28
	TxHashLen         = 32
)

func Blake2b224(data []byte) []byte {
	h, err := blake2b.New(CredentialHashLen, nil)
	if err != nil {
		panic("blake2b224: " + err.Error()) // only fails for bad key/size args
	}
	h.Write(data)
	return h.Sum(nil)
}

func Blake2b256(data []byte) []byte {
	result := blake2b.Sum256(data)
	return result[:]
}

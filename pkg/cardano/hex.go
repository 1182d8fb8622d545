package cardano

import (
	"encoding/hex"
)

func HexEncode(bytes []byte) string {
	return hex.EncodeToString(bytes)
}

func HexDecode(str string) ([]byte, error) {
	return hex.DecodeString(str)
}

func IsValidHex(str string) bool {
	_, err := HexDecode(str)
	return err == nil && len(str)%2 == 0
}

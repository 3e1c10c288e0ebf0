package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

//EncodeToString returns the UPPERCASE string representation of hexBytes with
//the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

//DecodeFromString converts a hex string, with or without the 0X prefix, to a
//byte slice.
func DecodeFromString(hexString string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToUpper(hexString), "0X")
	return hex.DecodeString(s)
}

//NormalizeHex rewrites a hex string in the canonical 0X-prefixed UPPERCASE form
//produced by EncodeToString.
func NormalizeHex(hexString string) string {
	return "0X" + strings.TrimPrefix(strings.ToUpper(hexString), "0X")
}

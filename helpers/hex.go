package helpers

import (
	"encoding/hex"
	"strings"
)

// MustHex decodes test fixture, spaces are ignored.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

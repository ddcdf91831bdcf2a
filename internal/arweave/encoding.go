package arweave

import (
	"encoding/base64"
	"math/big"
)

// b64 is the unpadded base64url alphabet used for every binary field on the wire.
var b64 = base64.RawURLEncoding

func encode(b []byte) string {
	return b64.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return b64.DecodeString(s)
}

// noteSize is the width of the big-endian integers mixed into merkle hashes.
const noteSize = 32

func intToNote(n int64) []byte {
	buf := make([]byte, noteSize)
	new(big.Int).SetInt64(n).FillBytes(buf)
	return buf
}

func newInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

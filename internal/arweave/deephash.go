package arweave

import (
	"crypto/sha512"
	"strconv"
)

// deepHash computes Arweave's recursive SHA-384 hash over a tree of byte
// strings. Each element must be []byte or []any of such elements.
func deepHash(item any) [48]byte {
	switch v := item.(type) {
	case []any:
		acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(v))))
		for _, child := range v {
			h := deepHash(child)
			acc = sha512.Sum384(append(acc[:], h[:]...))
		}
		return acc
	case []byte:
		tag := sha512.Sum384([]byte("blob" + strconv.Itoa(len(v))))
		data := sha512.Sum384(v)
		return sha512.Sum384(append(tag[:], data[:]...))
	default:
		panic("arweave: deepHash of unsupported type")
	}
}

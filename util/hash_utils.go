package util

import (
	"github.com/OneOfOne/xxhash"
)

// 将一个键进行Hash
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}

// HashCodeWithSeed hashes the concatenation of parts with the given seed,
// without copying them into one buffer.
func HashCodeWithSeed(seed uint64, parts ...[]byte) uint64 {
	h := xxhash.NewS64(seed)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum64()
}

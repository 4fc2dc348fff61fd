package exchange

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// CacheKey derives the cache key for a credential presented on a path.
//
// Each value is length-prefixed before hashing so that distinct
// (credential, path) pairs can never produce the same digest input. The raw
// credential is never used as a key, so it is not retained by the cache.
func CacheKey(credential, path string) string {
	h := sha256.New()

	var size [8]byte
	for _, v := range []string{credential, path} {
		binary.BigEndian.PutUint64(size[:], uint64(len(v)))
		h.Write(size[:])
		h.Write([]byte(v))
	}

	return hex.EncodeToString(h.Sum(nil))
}

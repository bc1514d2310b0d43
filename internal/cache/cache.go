package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores raw oracle replies so identical requests are not re-paid
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the parts of a chat request
// (model, system prompt, user content).
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "thema:v1:" + hex.EncodeToString(h.Sum(nil))
}

package toolsvc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// fingerprint keys a cache entry on the tool name plus canonicalized
// arguments, so semantically identical requests hit the same entry
// regardless of field order.
func fingerprint(tool string, args json.RawMessage) string {
	var decoded any
	canonical := []byte(args)
	if err := json.Unmarshal(args, &decoded); err == nil {
		if re, err := json.Marshal(decoded); err == nil {
			canonical = re
		}
	}
	h := sha256.New()
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	payload   json.RawMessage
	expiresAt time.Time
}

// resultCache is a TTL cache for lookup-tool payloads. Expired entries are
// dropped lazily on read and swept opportunistically on write.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *resultCache) get(key string) (json.RawMessage, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

func (c *resultCache) put(key string, payload json.RawMessage) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	// Sweep a few stale entries so the map does not grow unbounded.
	swept := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			if swept++; swept >= 16 {
				break
			}
		}
	}
	c.entries[key] = cacheEntry{payload: payload, expiresAt: now.Add(c.ttl)}
}

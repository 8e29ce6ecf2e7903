// internal/cache/cache.go
package cache

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"energypulse/logger"
)

// evictFraction is the share of entries removed, oldest first, when a write
// hits the store's capacity. Fixed policy, not configurable per call.
const evictFraction = 0.25

type envelope struct {
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"written_at"`
	TTL       time.Duration   `json:"ttl"`
}

// Stats is the best-effort introspection surface used for diagnostics.
type Stats struct {
	Count               int       `json:"count"`
	ApproximateByteSize int       `json:"approximate_byte_size"`
	OldestWrittenAt     time.Time `json:"oldest_written_at,omitempty"`
	NewestWrittenAt     time.Time `json:"newest_written_at,omitempty"`
}

// ExpiringCache stores JSON-serialisable payloads under string keys with an
// absolute TTL from write time. Expiry is lazy: entries are deleted on the
// read that finds them stale, there is no background sweep.
type ExpiringCache struct {
	store  Store
	prefix string
	now    func() time.Time
	log    *logger.Log
}

// New wraps a Store with expiry and eviction behaviour. All keys are
// prefixed so a bulk reset can clear cache entries without touching other
// data in the same store.
func New(store Store, prefix string) *ExpiringCache {
	return &ExpiringCache{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		log:    logger.GetLogger(),
	}
}

// WithClock substitutes the time source. Tests use this to step through TTL
// boundaries without sleeping.
func (c *ExpiringCache) WithClock(now func() time.Time) *ExpiringCache {
	c.now = now
	return c
}

// Get looks up key and unmarshals the payload into out. A stale entry is
// deleted and reported absent. The TTL is absolute from write time; reading
// does not renew it.
func (c *ExpiringCache) Get(key string, out interface{}) bool {
	raw, ok, err := c.store.Get(c.prefix + key)
	if err != nil {
		c.log.WithComponent("cache").WithError(err).Warn("cache read failed")
		return false
	}
	if !ok {
		logger.IncrementCacheMiss()
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt entry, drop it.
		_ = c.store.Delete(c.prefix + key)
		logger.IncrementCacheMiss()
		return false
	}

	if c.now().Sub(env.WrittenAt) > env.TTL {
		_ = c.store.Delete(c.prefix + key)
		logger.IncrementCacheMiss()
		return false
	}

	if err := json.Unmarshal(env.Payload, out); err != nil {
		_ = c.store.Delete(c.prefix + key)
		logger.IncrementCacheMiss()
		return false
	}
	logger.IncrementCacheHit()
	return true
}

// Set writes key with writtenAt=now. When the store reports it is full the
// oldest 25% of entries are evicted and the write retried once; a second
// failure drops the write silently, caching is best effort.
func (c *ExpiringCache) Set(key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.WithComponent("cache").WithError(err).Warn("cache payload not serialisable")
		return
	}
	raw, err := json.Marshal(envelope{Payload: payload, WrittenAt: c.now(), TTL: ttl})
	if err != nil {
		return
	}

	if err := c.store.Set(c.prefix+key, raw); err != nil {
		if err != ErrStoreFull {
			c.log.WithComponent("cache").WithError(err).Warn("cache write failed")
			return
		}
		c.evictOldest()
		if err := c.store.Set(c.prefix+key, raw); err != nil {
			c.log.WithComponent("cache").WithError(err).Warn("cache write dropped after eviction")
		}
	}
}

// Invalidate removes the entry unconditionally.
func (c *ExpiringCache) Invalidate(key string) {
	_ = c.store.Delete(c.prefix + key)
}

// ClearAll removes every entry whose (unprefixed) key starts with prefix.
// An empty prefix clears the whole cache.
func (c *ExpiringCache) ClearAll(prefix string) {
	keys, err := c.store.Keys(c.prefix + prefix)
	if err != nil {
		c.log.WithComponent("cache").WithError(err).Warn("cache clear failed")
		return
	}
	for _, k := range keys {
		_ = c.store.Delete(k)
	}
}

// Stats reports entry count, approximate payload size and write-time bounds.
func (c *ExpiringCache) Stats() Stats {
	keys, err := c.store.Keys(c.prefix)
	if err != nil {
		return Stats{}
	}

	st := Stats{Count: len(keys)}
	for _, k := range keys {
		raw, ok, err := c.store.Get(k)
		if err != nil || !ok {
			continue
		}
		st.ApproximateByteSize += len(raw)

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if st.OldestWrittenAt.IsZero() || env.WrittenAt.Before(st.OldestWrittenAt) {
			st.OldestWrittenAt = env.WrittenAt
		}
		if env.WrittenAt.After(st.NewestWrittenAt) {
			st.NewestWrittenAt = env.WrittenAt
		}
	}
	return st
}

// evictOldest removes the oldest ceil(25%) of entries by write time.
func (c *ExpiringCache) evictOldest() {
	keys, err := c.store.Keys(c.prefix)
	if err != nil || len(keys) == 0 {
		return
	}

	type aged struct {
		key       string
		writtenAt time.Time
	}
	entries := make([]aged, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := c.store.Get(k)
		if err != nil || !ok {
			continue
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Unreadable entry counts as oldest.
			_ = c.store.Delete(k)
			continue
		}
		entries = append(entries, aged{key: k, writtenAt: env.WrittenAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].writtenAt.Before(entries[j].writtenAt)
	})

	removeCount := int(math.Ceil(float64(len(entries)) * evictFraction))
	for i := 0; i < removeCount && i < len(entries); i++ {
		_ = c.store.Delete(entries[i].key)
	}
	c.log.WithComponent("cache").WithFields(logger.Fields{"evicted": removeCount}).Info("evicted oldest cache entries")
}

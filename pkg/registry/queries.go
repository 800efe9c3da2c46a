package registry

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
)

// QueryCache maps query-id fingerprints to the normalized query text
// they were computed from. Entries expire so that texts of queries no
// longer running do not accumulate forever.
type QueryCache struct {
	cache *ttlcache.Cache[uint64, string]
}

func NewQueryCache(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := ttlcache.New(
		ttlcache.WithTTL[uint64, string](ttl),
	)
	go c.Start()
	return &QueryCache{cache: c}
}

// Fingerprint computes the stable query id for a query text. The text
// is whitespace-normalized first so formatting differences collapse
// onto one id. Returns 0 for empty text (0 is the "untracked"
// sentinel throughout).
func Fingerprint(text string) uint64 {
	normalized := normalize(text)
	if normalized == "" {
		return 0
	}
	id, err := hashstructure.Hash(normalized, hashstructure.FormatV2, nil)
	if err != nil || id == 0 {
		// Hashing a string cannot fail and the zero hash is
		// vanishingly unlikely, but 0 must stay reserved.
		return 1
	}
	return id
}

// Record fingerprints the text, caches it and returns the id.
func (q *QueryCache) Record(text string) uint64 {
	id := Fingerprint(text)
	if id == 0 {
		return 0
	}
	q.cache.Set(id, normalize(text), ttlcache.DefaultTTL)
	return id
}

// Text returns the cached text for a query id.
func (q *QueryCache) Text(id uint64) (string, bool) {
	if id == 0 {
		return "", false
	}
	item := q.cache.Get(id)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Stop terminates the cache's expiration loop.
func (q *QueryCache) Stop() {
	q.cache.Stop()
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

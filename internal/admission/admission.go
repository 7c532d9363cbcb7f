// Package admission implements the Bloom-filter-plus-positive-cache
// front door that shields storage from brute-force PID probing. It never
// throttles by IP: the only signal it uses is whether a PID has ever been
// observed as a genuine, persisted payment.
package admission

import (
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/synnergy-labs/monero-gateway/internal/ids"
)

// Config sizes the admission layer at boot.
type Config struct {
	// BloomEntries is the expected number of genuine PIDs the filter will
	// ever hold.
	BloomEntries uint
	// BloomFPRate is the target false-positive rate at BloomEntries.
	BloomFPRate float64
	// CacheCapacity bounds the number of entries the positive cache holds.
	CacheCapacity int
	// CacheTTL is the per-entry time-to-live of the positive cache.
	CacheTTL time.Duration
}

// Layer is the admission front door: a Bloom filter with no false
// negatives backing a bounded, positive-only TTL cache. Both halves are
// safe for concurrent use.
type Layer struct {
	bloom *bloom.BloomFilter
	cache *lru.LRU[ids.PaymentId, struct{}]
}

// New constructs a Layer sized per cfg. Zero values fall back to the
// defaults documented in the configuration surface.
func New(cfg Config) *Layer {
	entries := cfg.BloomEntries
	if entries == 0 {
		entries = 100_000
	}
	fp := cfg.BloomFPRate
	if fp <= 0 {
		fp = 0.01
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 100_000
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	return &Layer{
		bloom: bloom.NewWithEstimates(entries, fp),
		cache: lru.NewLRU[ids.PaymentId, struct{}](capacity, nil, ttl),
	}
}

// Insert records pid as known-good. It must only ever be called with a
// PID that storage has confirmed to exist — inserting an
// attacker-supplied PID would let probing inflate the Bloom filter's
// false-positive rate.
func (l *Layer) Insert(pid ids.PaymentId) {
	l.bloom.Add(pid.Bytes())
	l.cache.Add(pid, struct{}{})
}

// Decision is the outcome of a redeem-path admission check.
type Decision int

const (
	// DecisionReject means the Bloom filter says the PID is definitely
	// absent; the caller must return 404 without touching the cache or
	// storage.
	DecisionReject Decision = iota
	// DecisionCacheHit means the positive cache already vouches for the
	// PID; the caller may proceed straight to the storage claim.
	DecisionCacheHit
	// DecisionCheckStorage means the Bloom filter is positive (possibly a
	// false positive) but the cache has no record; the caller must
	// perform a storage lookup to resolve it.
	DecisionCheckStorage
)

// Check runs steps 1-2 of the admission decision procedure: a cheap
// Bloom test, then a cache lookup. It never touches storage.
func (l *Layer) Check(pid ids.PaymentId) Decision {
	if !l.bloom.Test(pid.Bytes()) {
		return DecisionReject
	}
	if _, ok := l.cache.Get(pid); ok {
		return DecisionCacheHit
	}
	return DecisionCheckStorage
}

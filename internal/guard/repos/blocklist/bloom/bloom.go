// Package bloom provides the repository's exact-key prefilter.
package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/tubeguard/internal/guard/repos/blocklist"
)

// DefaultFPRate is used when the requested false-positive rate is outside (0, 1).
const DefaultFPRate = 0.01

type factory struct{}

// NewFactory returns a BloomFactory backed by bits-and-blooms.
func NewFactory() blocklist.BloomFactory { return factory{} }

// New sizes the filter with the library's estimator. An empty table still
// gets a filter for one key.
func (factory) New(capacity uint64, fpRate float64) blocklist.BloomFilter {
	if capacity == 0 {
		capacity = 1
	}
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = DefaultFPRate
	}
	return &filter{bf: bitsbloom.NewWithEstimates(uint(capacity), fpRate)}
}

// filter serializes Add; lookups share the read lock so navigation handlers
// query it in parallel once the tables are loaded.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

// params reports the bit count and hash count.
func (f *filter) params() (m, k uint) {
	return f.bf.Cap(), f.bf.K()
}

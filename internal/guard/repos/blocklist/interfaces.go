package blocklist

import "github.com/haukened/tubeguard/internal/guard/domain"

// BloomFilter is the minimal interface the repository needs from a Bloom
// filter over exact table keys.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory constructs Bloom filters sized for a capacity and target
// false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches URL decisions with basic metrics.
type DecisionCache interface {
	Get(url string) (domain.Decision, bool)
	Put(url string, d domain.Decision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store persists a compiled snapshot of the tables so the daemon can start
// without its source files.
type Store interface {
	Rebuild(t *domain.Tables, version uint64, updatedUnix int64) error
	Load() (domain.TableSource, error)
	Stats() StoreStats
	Close() error
}

// Repository answers URL decisions for the pre-navigation hot path.
// Decide never fails: on any internal problem it returns Allow.
type Repository interface {
	Decide(url string) domain.Decision
	Tables() *domain.Tables
	RepoStats() RepoStats
}

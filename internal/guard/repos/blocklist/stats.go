package blocklist

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// StoreStats reports snapshot metadata and per-table key counts.
type StoreStats struct {
	Version     uint64 // snapshot version (0 if unknown)
	UpdatedUnix int64  // last updated unix time (0 if unknown)
	Keys        map[string]uint64
}

// RepoStats exposes repository-level counters.
type RepoStats struct {
	Decisions    uint64 // total Decide calls
	BloomRejects uint64 // decisions answered by the Bloom prefilter alone
	Blocked      uint64 // decisions that blocked
	Cache        CacheStats
}

package blocklist

import (
	"sync/atomic"

	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/classifier"
)

// repository implements Repository by composing the classifier with a Bloom
// prefilter and a DecisionCache. Reads follow extract → bloom → cache →
// classify. The tables never change, so the filter is built once.
type repository struct {
	tables *domain.Tables
	cache  DecisionCache
	bloom  BloomFilter

	decisions    atomic.Uint64
	bloomRejects atomic.Uint64
	blocked      atomic.Uint64
}

// NewRepository constructs a Repository over t.
// fpRate is the target false-positive rate for the Bloom filter. A nil
// factory disables the prefilter.
func NewRepository(t *domain.Tables, cache DecisionCache, factory BloomFactory, fpRate float64) Repository {
	r := &repository{tables: t, cache: cache}
	if factory != nil {
		keys := t.ExactKeys()
		bf := factory.New(uint64(len(keys)), fpRate)
		for _, k := range keys {
			bf.Add(k)
		}
		r.bloom = bf
	}
	return r
}

// Decide returns the decision for rawURL.
// Policy: on anything unexpected, prefer Allow (not blocked).
func (r *repository) Decide(rawURL string) domain.Decision {
	r.decisions.Add(1)

	// 1) extract: URLs with no recognised shape are allowed outright
	id, ok := classifier.Extract(rawURL)
	if !ok {
		return domain.Allow()
	}
	// 2) checkBloom: early-allow if definitively negative
	if !r.checkBloom(id) {
		r.bloomRejects.Add(1)
		return domain.Allow()
	}
	// 3) checkCache
	if d, ok := r.cache.Get(rawURL); ok {
		r.count(d)
		return d
	}
	// 4) classify and remember
	d := classifier.Classify(r.tables, rawURL)
	r.cache.Put(rawURL, d)
	r.count(d)
	return d
}

// Tables returns the tables this repository decides against.
func (r *repository) Tables() *domain.Tables { return r.tables }

// RepoStats returns cumulative counters.
func (r *repository) RepoStats() RepoStats {
	return RepoStats{
		Decisions:    r.decisions.Load(),
		BloomRejects: r.bloomRejects.Load(),
		Blocked:      r.blocked.Load(),
		Cache:        r.cache.Stats(),
	}
}

// checkBloom returns true if the classifier must be consulted
// (maybe-positive), or false if the extracted key is definitely absent.
func (r *repository) checkBloom(id domain.Identity) bool {
	if r.bloom == nil {
		return true
	}
	switch {
	case id.VideoID != "":
		return r.bloom.MightContain(domain.VideoKey(id.VideoID))
	case id.ChannelID != "":
		return r.bloom.MightContain(domain.ChannelKey(id.ChannelID))
	case id.ChannelHandle != "":
		return r.bloom.MightContain(domain.HandleKey(id.ChannelHandle))
	}
	return true
}

func (r *repository) count(d domain.Decision) {
	if d.Blocked {
		r.blocked.Add(1)
	}
}

package lru

import (
	"strconv"
	"testing"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

func BenchmarkCache_PositiveHit(b *testing.B) {
	c, err := New(1024)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	key := "https://www.youtube.com/watch?v=BLOCKED_ID"
	c.Put(key, domain.Block(domain.LayerURL, "video id: BLOCKED_ID", domain.Identity{VideoID: "BLOCKED_ID"}))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get(key); !ok {
			b.Fatalf("unexpected miss for key %q", key)
		}
	}
}

func BenchmarkCache_PutEvict(b *testing.B) {
	c, err := New(128)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = "https://www.youtube.com/watch?v=" + strconv.Itoa(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(keys[i%len(keys)], domain.Allow())
	}
}

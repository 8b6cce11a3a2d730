package blocklist

import (
	"strconv"
	"testing"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

func benchTables(n int) *domain.Tables {
	src := domain.TableSource{}
	for i := 0; i < n; i++ {
		src.VideoIDs = append(src.VideoIDs, "vid"+strconv.Itoa(i))
		src.ChannelIDs = append(src.ChannelIDs, "UC"+strconv.Itoa(i))
	}
	return domain.NewTables(src)
}

// Decisions for unknown videos should be answered by the Bloom prefilter.
func BenchmarkRepository_DecideUnknownVideo(b *testing.B) {
	r := NewRepository(benchTables(10000), newFakeCache(), &fakeFactory{}, 0.01)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Decide("https://www.youtube.com/watch?v=unknown")
	}
}

func BenchmarkRepository_DecideOffSite(b *testing.B) {
	r := NewRepository(benchTables(10000), newFakeCache(), &fakeFactory{}, 0.01)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Decide("https://example.com/")
	}
}

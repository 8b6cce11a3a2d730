package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "bl.db")
}

func sampleTables() *domain.Tables {
	return domain.NewTables(domain.TableSource{
		VideoKeys:            []string{"Sprunki"},
		VideoIDs:             []string{"bKitktXKELo"},
		ChannelIDs:           []string{"UCYHjrFQUdDzQXqim-FvD43Q"},
		ChannelHandles:       []string{"@ExampleUser"},
		ChannelTitleKeywords: []string{"Casino"},
	})
}

func TestBoltStore_EmptyLoad(t *testing.T) {
	st, err := New(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	src, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.TableSource{}, src)

	stats := st.Stats()
	assert.Zero(t, stats.Version)
	assert.Zero(t, stats.Keys[BucketVideoIDs])
}

func TestBoltStore_RebuildRoundTrip(t *testing.T) {
	st, err := New(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	want := sampleTables()
	now := time.Unix(1_760_000_000, 0)
	require.NoError(t, st.Rebuild(want, 7, now.Unix()))

	src, err := st.Load()
	require.NoError(t, err)
	got := domain.NewTables(src)

	assert.Equal(t, want.VideoIDs(), got.VideoIDs())
	assert.Equal(t, want.VideoTitleKeywords(), got.VideoTitleKeywords())
	assert.Equal(t, want.ChannelIDs(), got.ChannelIDs())
	assert.Equal(t, want.ChannelHandles(), got.ChannelHandles())
	assert.Equal(t, want.ChannelTitleKeywords(), got.ChannelTitleKeywords())
	assert.True(t, got.HasVideoID("Sprunki"))
	_, ok := got.MatchVideoTitle("SPRUNKI remix")
	assert.True(t, ok)

	stats := st.Stats()
	assert.EqualValues(t, 7, stats.Version)
	assert.Equal(t, now.Unix(), stats.UpdatedUnix)
	assert.EqualValues(t, 2, stats.Keys[BucketVideoIDs])
	assert.EqualValues(t, 1, stats.Keys[BucketChannelHandles])
}

func TestBoltStore_RebuildReplaces(t *testing.T) {
	st, err := New(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Rebuild(sampleTables(), 1, 1))
	require.NoError(t, st.Rebuild(domain.NewTables(domain.TableSource{VideoIDs: []string{"only"}}), 2, 2))

	src, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, src.VideoIDs)
	assert.Empty(t, src.ChannelIDs)
	assert.EqualValues(t, 2, st.Stats().Version)
}

func TestBoltStore_ReopenPersists(t *testing.T) {
	path := tempDB(t)
	st, err := New(path)
	require.NoError(t, err)
	require.NoError(t, st.Rebuild(sampleTables(), 3, 3))
	require.NoError(t, st.Close())

	st, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	src, err := st.Load()
	require.NoError(t, err)
	assert.Contains(t, src.ChannelIDs, "UCYHjrFQUdDzQXqim-FvD43Q")
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir", "bl.db"))
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestDeleteBuckets(t *testing.T) {
	tests := []struct {
		name    string
		errs    map[string]error
		wantErr bool
	}{
		{"all deleted", nil, false},
		{"ignore missing bucket", map[string]error{"a": bberrors.ErrBucketNotFound}, false},
		{"first fails", map[string]error{"a": assertErr{}}, true},
		{"second fails", map[string]error{"b": assertErr{}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			fake := bucketDeleterFunc(func(name []byte) error {
				calls = append(calls, string(name))
				return tc.errs[string(name)]
			})
			err := deleteBuckets(fake, []byte("a"), []byte("b"))
			if tc.wantErr {
				assert.ErrorIs(t, err, assertErr{})
			} else {
				assert.NoError(t, err)
				assert.Equal(t, []string{"a", "b"}, calls)
			}
		})
	}
}

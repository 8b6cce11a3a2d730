package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/repos/blocklist"
)

// Bucket names double as the StoreStats.Keys map keys.
const (
	BucketVideoIDs        = "video_ids"
	BucketVideoKeywords   = "video_keywords"
	BucketChannelIDs      = "channel_ids"
	BucketChannelHandles  = "channel_handles"
	BucketChannelKeywords = "channel_keywords"
)

var (
	tableBuckets = []string{
		BucketVideoIDs,
		BucketVideoKeywords,
		BucketChannelIDs,
		BucketChannelHandles,
		BucketChannelKeywords,
	}
	bucketMeta = []byte("meta")
	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// boltStore implements blocklist.Store using bbolt. Each table is one bucket
// whose keys are the normalized entries.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (blocklist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range tableBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// Rebuild replaces the snapshot with t in a single transaction.
func (s *boltStore) Rebuild(t *domain.Tables, version uint64, updatedUnix int64) error {
	content := map[string][]string{
		BucketVideoIDs:        t.VideoIDs(),
		BucketVideoKeywords:   t.VideoTitleKeywords(),
		BucketChannelIDs:      t.ChannelIDs(),
		BucketChannelHandles:  t.ChannelHandles(),
		BucketChannelKeywords: t.ChannelTitleKeywords(),
	}
	names := make([][]byte, len(tableBuckets))
	for i, name := range tableBuckets {
		names[i] = []byte(name)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBuckets(tx, names...); err != nil {
			return err
		}
		for _, name := range tableBuckets {
			b, err := tx.CreateBucket([]byte(name))
			if err != nil {
				return err
			}
			for _, entry := range content[name] {
				if err := b.Put([]byte(entry), []byte{1}); err != nil {
					return err
				}
			}
		}
		meta := tx.Bucket(bucketMeta)
		vbuf := make([]byte, 8)
		ubuf := make([]byte, 8)
		binary.BigEndian.PutUint64(vbuf, version)
		binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
		if err := meta.Put(keyVersion, vbuf); err != nil {
			return err
		}
		return meta.Put(keyUpdated, ubuf)
	})
}

// Load reads the snapshot back as a TableSource. Video entries come back split
// into ids and keywords, which NewTables compiles to the same tables.
func (s *boltStore) Load() (domain.TableSource, error) {
	var src domain.TableSource
	err := s.db.View(func(tx *bbolt.Tx) error {
		read := func(name string) []string {
			b := tx.Bucket([]byte(name))
			if b == nil {
				return nil
			}
			var out []string
			_ = b.ForEach(func(k, _ []byte) error {
				out = append(out, string(k))
				return nil
			})
			return out
		}
		src.VideoIDs = read(BucketVideoIDs)
		src.VideoTitleKeywords = read(BucketVideoKeywords)
		src.ChannelIDs = read(BucketChannelIDs)
		src.ChannelHandles = read(BucketChannelHandles)
		src.ChannelTitleKeywords = read(BucketChannelKeywords)
		return nil
	})
	return src, err
}

func (s *boltStore) Stats() blocklist.StoreStats {
	st := blocklist.StoreStats{Keys: make(map[string]uint64, len(tableBuckets))}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		for _, name := range tableBuckets {
			if b := tx.Bucket([]byte(name)); b != nil {
				st.Keys[name] = uint64(b.Stats().KeyN)
			}
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

type bucketDeleterFunc func(name []byte) error

func (f bucketDeleterFunc) DeleteBucket(name []byte) error { return f(name) }

// deleteBuckets drops each named bucket, tolerating ones that do not exist.
func deleteBuckets(tx bucketDeleter, names ...[]byte) error {
	for _, n := range names {
		if err := tx.DeleteBucket(n); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return fmt.Errorf("failed to clear bucket %s: %w", n, err)
		}
	}
	return nil
}

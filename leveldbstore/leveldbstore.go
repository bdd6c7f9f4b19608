// Package leveldbstore implements pathoram.Storage on top of leveldb.
//
// Each bucket is one key (the 8-byte big-endian bucket index) whose value is
// the concatenation of its Z fixed-length ciphertext slots. The store only
// checks shapes; it never interprets slot contents.
package leveldbstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	pathoram "github.com/etclab/pathoram-client"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// Options describes the bucket layout and durability of a Store.
type Options struct {
	NumBuckets int  // tree size
	BucketSize int  // Z
	SlotSize   int  // ciphertext length of one slot
	Sync       bool // fsync every write
}

// Store is a leveldb-backed bucket array.
type Store struct {
	db   *leveldb.DB
	opts Options
	wo   *opt.WriteOptions
}

var (
	_ pathoram.Storage     = (*Store)(nil)
	_ pathoram.BatchWriter = (*Store)(nil)
)

// Open opens or creates a store at path. An empty path uses in-memory
// leveldb storage.
func Open(path string, opts Options) (*Store, error) {
	if opts.NumBuckets <= 0 || opts.BucketSize <= 0 || opts.SlotSize <= 0 {
		return nil, fmt.Errorf("%w: leveldb store layout %+v", pathoram.ErrInvalidConfig, opts)
	}

	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}

	return &Store{
		db:   db,
		opts: opts,
		wo:   &opt.WriteOptions{Sync: opts.Sync},
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NumBuckets returns the tree size the store was opened with.
func (s *Store) NumBuckets() int {
	return s.opts.NumBuckets
}

// GetBucket returns the bucket at idx.
func (s *Store) GetBucket(idx int) (pathoram.Bucket, error) {
	if err := s.checkIndex(idx); err != nil {
		return nil, err
	}
	v, err := s.db.Get(bucketKey(idx), nil)
	if err != nil {
		return nil, s.readErr(idx, err)
	}
	return s.decode(v)
}

// GetBuckets reads all indices from a single snapshot.
func (s *Store) GetBuckets(indices []int) ([]pathoram.Bucket, error) {
	for _, idx := range indices {
		if err := s.checkIndex(idx); err != nil {
			return nil, err
		}
	}

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: snapshot: %w", err)
	}
	defer snap.Release()

	out := make([]pathoram.Bucket, len(indices))
	for i, idx := range indices {
		v, err := snap.Get(bucketKey(idx), nil)
		if err != nil {
			return nil, s.readErr(idx, err)
		}
		if out[i], err = s.decode(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteBucket replaces the bucket at idx.
func (s *Store) WriteBucket(idx int, bucket pathoram.Bucket) error {
	v, err := s.encode(idx, bucket)
	if err != nil {
		return err
	}
	return s.db.Put(bucketKey(idx), v, s.wo)
}

// WriteBuckets replaces several buckets in one atomic leveldb batch.
func (s *Store) WriteBuckets(indices []int, buckets []pathoram.Bucket) error {
	if len(indices) != len(buckets) {
		return fmt.Errorf("leveldbstore: %d indices for %d buckets", len(indices), len(buckets))
	}
	batch := new(leveldb.Batch)
	for i, idx := range indices {
		v, err := s.encode(idx, buckets[i])
		if err != nil {
			return err
		}
		batch.Put(bucketKey(idx), v)
	}
	return s.db.Write(batch, s.wo)
}

func (s *Store) checkIndex(idx int) error {
	if idx < 0 || idx >= s.opts.NumBuckets {
		return fmt.Errorf("%w: %d", pathoram.ErrOutOfRange, idx)
	}
	return nil
}

func (s *Store) readErr(idx int, err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("leveldbstore: bucket %d was never written: %w", idx, err)
	}
	return fmt.Errorf("leveldbstore: get bucket %d: %w", idx, err)
}

func (s *Store) encode(idx int, bucket pathoram.Bucket) ([]byte, error) {
	if err := s.checkIndex(idx); err != nil {
		return nil, err
	}
	if len(bucket) != s.opts.BucketSize {
		return nil, fmt.Errorf("leveldbstore: bucket %d has %d slots, want %d",
			idx, len(bucket), s.opts.BucketSize)
	}
	v := make([]byte, 0, s.opts.BucketSize*s.opts.SlotSize)
	for slot, ct := range bucket {
		if len(ct) != s.opts.SlotSize {
			return nil, fmt.Errorf("leveldbstore: bucket %d slot %d is %d bytes, want %d",
				idx, slot, len(ct), s.opts.SlotSize)
		}
		v = append(v, ct...)
	}
	return v, nil
}

// decode splits a stored value back into slots. A value of the wrong length
// is returned as-is in a single slot so the client's integrity check fails
// on it instead of the store guessing.
func (s *Store) decode(v []byte) (pathoram.Bucket, error) {
	if len(v) != s.opts.BucketSize*s.opts.SlotSize {
		return pathoram.Bucket{v}, nil
	}
	bucket := make(pathoram.Bucket, s.opts.BucketSize)
	for i := range bucket {
		slot := make([]byte, s.opts.SlotSize)
		copy(slot, v[i*s.opts.SlotSize:])
		bucket[i] = slot
	}
	return bucket, nil
}

func bucketKey(idx int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(idx))
	return k
}

package pathoram

import "fmt"

// Bucket is the wire form of one tree node: exactly Z opaque ciphertext slots,
// in order. The backend must never inspect, reorder or deduplicate slots.
type Bucket [][]byte

// Clone returns a deep copy of b.
func (b Bucket) Clone() Bucket {
	out := make(Bucket, len(b))
	for i, slot := range b {
		out[i] = append([]byte(nil), slot...)
	}
	return out
}

// Storage provides bucket-level access to the ORAM tree held by the server.
// Implementations may store data in memory, files, or remote services; they
// know nothing about ORAM semantics.
type Storage interface {
	// GetBucket returns the bucket at idx, or an error wrapping ErrOutOfRange.
	GetBucket(idx int) (Bucket, error)

	// GetBuckets returns the buckets at indices, aligned with indices.
	GetBuckets(indices []int) ([]Bucket, error)

	// WriteBucket replaces the bucket at idx.
	WriteBucket(idx int, bucket Bucket) error

	// NumBuckets returns the total number of buckets in storage.
	NumBuckets() int
}

// BatchWriter is implemented by storage that can replace several buckets
// atomically. The client commits each operation through it when available.
type BatchWriter interface {
	WriteBuckets(indices []int, buckets []Bucket) error
}

// InMemoryStorage implements Storage using in-memory slices.
type InMemoryStorage struct {
	buckets    []Bucket
	bucketSize int
}

var (
	_ Storage     = (*InMemoryStorage)(nil)
	_ BatchWriter = (*InMemoryStorage)(nil)
)

// NewInMemoryStorage creates an in-memory storage with numBuckets empty
// buckets. The client fills every slot with an encrypted dummy on start.
func NewInMemoryStorage(numBuckets, bucketSize int) *InMemoryStorage {
	return &InMemoryStorage{
		buckets:    make([]Bucket, numBuckets),
		bucketSize: bucketSize,
	}
}

// GetBucket returns a copy of the bucket at idx.
func (s *InMemoryStorage) GetBucket(idx int) (Bucket, error) {
	if idx < 0 || idx >= len(s.buckets) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, idx)
	}
	// Return a copy to prevent external modification
	return s.buckets[idx].Clone(), nil
}

// GetBuckets returns copies of the buckets at indices.
func (s *InMemoryStorage) GetBuckets(indices []int) ([]Bucket, error) {
	out := make([]Bucket, len(indices))
	for i, idx := range indices {
		b, err := s.GetBucket(idx)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// WriteBucket stores a copy of bucket at idx.
func (s *InMemoryStorage) WriteBucket(idx int, bucket Bucket) error {
	if err := s.check(idx, bucket); err != nil {
		return err
	}
	s.buckets[idx] = bucket.Clone()
	return nil
}

// WriteBuckets validates every bucket before writing any of them.
func (s *InMemoryStorage) WriteBuckets(indices []int, buckets []Bucket) error {
	if len(indices) != len(buckets) {
		return fmt.Errorf("pathoram: %d indices for %d buckets", len(indices), len(buckets))
	}
	for i, idx := range indices {
		if err := s.check(idx, buckets[i]); err != nil {
			return err
		}
	}
	for i, idx := range indices {
		s.buckets[idx] = buckets[i].Clone()
	}
	return nil
}

func (s *InMemoryStorage) check(idx int, bucket Bucket) error {
	if idx < 0 || idx >= len(s.buckets) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, idx)
	}
	if len(bucket) != s.bucketSize {
		return fmt.Errorf("pathoram: bucket %d has %d slots, want %d", idx, len(bucket), s.bucketSize)
	}
	return nil
}

// NumBuckets returns the total number of buckets.
func (s *InMemoryStorage) NumBuckets() int {
	return len(s.buckets)
}

// BucketSize returns slots per bucket.
func (s *InMemoryStorage) BucketSize() int {
	return s.bucketSize
}

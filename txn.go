package pathoram

import (
	"fmt"
)

// txn stages the effects of one public operation. Buckets are decrypted on
// first read, mutated in plaintext, and sealed again on every write; nothing
// reaches storage or the position map until commit.
type txn struct {
	o *Client

	// Sealed buckets waiting to be written, in first-write order.
	pending map[int]Bucket
	order   []int

	// Position map state before the first change to each id.
	saved map[int]savedPosition
}

type savedPosition struct {
	leaf   int
	exists bool
}

func (o *Client) begin() *txn {
	return &txn{
		o:       o,
		pending: make(map[int]Bucket),
		saved:   make(map[int]savedPosition),
	}
}

// readBlocks fetches and decrypts one bucket.
func (t *txn) readBlocks(idx int) ([]Block, error) {
	all, err := t.readMany([]int{idx})
	if err != nil {
		return nil, err
	}
	return all[0], nil
}

// readMany fetches and decrypts several buckets, asking storage for all
// unstaged ones in a single batch.
func (t *txn) readMany(indices []int) ([][]Block, error) {
	var missing []int
	for _, idx := range indices {
		if !t.o.geo.Valid(idx) {
			return nil, fmt.Errorf("%w: bucket %d outside tree", ErrInvariant, idx)
		}
		if _, ok := t.pending[idx]; !ok {
			missing = append(missing, idx)
		}
	}

	fetched := make(map[int]Bucket, len(missing))
	if len(missing) > 0 {
		buckets, err := t.o.storage.GetBuckets(missing)
		if err != nil {
			return nil, fmt.Errorf("read buckets: %w", err)
		}
		if len(buckets) != len(missing) {
			return nil, fmt.Errorf("%w: storage returned %d buckets for %d indices",
				ErrIntegrity, len(buckets), len(missing))
		}
		for i, idx := range missing {
			fetched[idx] = buckets[i]
		}
	}

	out := make([][]Block, len(indices))
	for i, idx := range indices {
		bucket, ok := t.pending[idx]
		if !ok {
			bucket = fetched[idx]
		}
		blocks, err := t.o.openBucket(idx, bucket)
		if err != nil {
			return nil, err
		}
		out[i] = blocks
	}
	return out, nil
}

// writeBlocks re-encrypts every slot of the bucket and stages it.
func (t *txn) writeBlocks(idx int, blocks []Block) error {
	bucket, err := t.o.sealBucket(idx, blocks)
	if err != nil {
		return err
	}
	if _, ok := t.pending[idx]; !ok {
		t.order = append(t.order, idx)
	}
	t.pending[idx] = bucket
	return nil
}

func (t *txn) position(id int) (int, bool) {
	return t.o.posMap.Get(id)
}

func (t *txn) setPosition(id, leaf int) {
	t.save(id)
	t.o.posMap.Set(id, leaf)
}

func (t *txn) removePosition(id int) {
	t.save(id)
	t.o.posMap.Remove(id)
}

func (t *txn) save(id int) {
	if _, ok := t.saved[id]; ok {
		return
	}
	leaf, exists := t.o.posMap.Get(id)
	t.saved[id] = savedPosition{leaf: leaf, exists: exists}
}

// rollback restores the position map; storage was never touched.
func (t *txn) rollback() {
	for id, s := range t.saved {
		if s.exists {
			t.o.posMap.Set(id, s.leaf)
		} else {
			t.o.posMap.Remove(id)
		}
	}
	t.pending = nil
	t.order = nil
}

// commit writes every staged bucket, atomically when storage supports it.
func (t *txn) commit() error {
	buckets := make([]Bucket, len(t.order))
	for i, idx := range t.order {
		buckets[i] = t.pending[idx]
	}

	if bw, ok := t.o.storage.(BatchWriter); ok {
		if err := bw.WriteBuckets(t.order, buckets); err != nil {
			return fmt.Errorf("write buckets: %w", err)
		}
		return nil
	}

	for i, idx := range t.order {
		if err := t.o.storage.WriteBucket(idx, buckets[i]); err != nil {
			// Earlier buckets are already on the server.
			return fmt.Errorf("%w: partial commit at bucket %d: %v", ErrInvariant, idx, err)
		}
	}
	return nil
}

package pathoram

import (
	"fmt"

	"go.uber.org/zap"
)

// initBatch bounds how many buckets are written per storage call while
// filling the tree with dummies.
const initBatch = 1024

// Client implements the Path ORAM client. It owns the secret key (inside its
// BlockCipher) and the position map; storage sees only sealed buckets.
// A Client is not safe for concurrent use.
type Client struct {
	cfg Config
	geo Geometry

	storage Storage     // pluggable storage backend
	posMap  PositionMap // pluggable position map
	cipher  BlockCipher // pluggable encryption
	log     *zap.Logger

	failed error // first fatal error; the session is over once set
}

// New creates a client with explicit dependencies and fills storage with
// encrypted dummy buckets. storage must hold exactly TreeSize buckets and
// posMap must be empty.
func New(cfg Config, storage Storage, posMap PositionMap, enc BlockCipher) (*Client, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	geo, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	if storage == nil || posMap == nil || enc == nil {
		return nil, fmt.Errorf("%w: missing dependency", ErrInvalidConfig)
	}
	if storage.NumBuckets() != geo.TreeSize {
		return nil, fmt.Errorf("%w: storage has %d buckets, tree needs %d",
			ErrInvalidConfig, storage.NumBuckets(), geo.TreeSize)
	}
	if posMap.Size() != 0 {
		return nil, fmt.Errorf("%w: position map is not empty", ErrInvalidConfig)
	}

	o := &Client{
		cfg:     cfg,
		geo:     geo,
		storage: storage,
		posMap:  posMap,
		cipher:  enc,
		log:     cfg.Logger.Named("pathoram"),
	}
	if err := o.initialize(); err != nil {
		return nil, err
	}
	o.log.Debug("tree initialized",
		zap.Int("capacity", geo.Capacity),
		zap.Int("height", geo.Height),
		zap.Int("bucket_size", geo.BucketSize),
		zap.Int("tree_size", geo.TreeSize),
		zap.Stringer("cipher", cfg.Cipher))
	return o, nil
}

// NewClient creates a client over storage with a freshly generated secret key
// and an in-memory position map.
func NewClient(cfg Config, storage Storage) (*Client, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	enc, err := NewCipher(cfg.Cipher, key, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	return New(cfg, storage, NewInMemoryPositionMap(), enc)
}

// NewInMemory creates a client backed by in-memory storage.
// This is the simplest way to create a client for testing or in-memory use.
func NewInMemory(cfg Config) (*Client, error) {
	geo, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, NewInMemoryStorage(geo.TreeSize, geo.BucketSize))
}

// Capacity returns the number of blocks this ORAM can store.
func (o *Client) Capacity() int {
	return o.geo.Capacity
}

// Height returns the height of the binary tree.
func (o *Client) Height() int {
	return o.geo.Height
}

// NumLeaves returns the number of leaf nodes in the tree.
func (o *Client) NumLeaves() int {
	return o.geo.LeafCount
}

// BucketSize returns Z.
func (o *Client) BucketSize() int {
	return o.geo.BucketSize
}

// TreeSize returns the number of buckets in the tree.
func (o *Client) TreeSize() int {
	return o.geo.TreeSize
}

// Geometry returns the tree shape.
func (o *Client) Geometry() Geometry {
	return o.geo
}

// Size returns the number of live blocks.
func (o *Client) Size() int {
	return o.posMap.Size()
}

// BlockSize returns the configured block size.
func (o *Client) BlockSize() int {
	return o.cfg.BlockSize
}

// Contains reports whether id is currently stored.
func (o *Client) Contains(id int) bool {
	return o.posMap.Contains(id)
}

// Err returns the fatal error that ended the session, if any.
func (o *Client) Err() error {
	return o.failed
}

// Store writes a new block. id must not already be stored and data must be
// exactly BlockSize bytes.
func (o *Client) Store(id int, data []byte) error {
	if err := o.checkSession(); err != nil {
		return err
	}
	if id < 0 {
		return ErrInvalidBlockID
	}
	if len(data) != o.cfg.BlockSize {
		return ErrInvalidDataSize
	}
	if o.posMap.Contains(id) {
		return ErrDuplicateID
	}
	if o.posMap.Size() >= o.geo.Capacity {
		return ErrCapacityExceeded
	}

	payload := append([]byte(nil), data...)
	return o.run("store", id, func(t *txn) error {
		return o.store(t, id, payload, -1)
	})
}

// Retrieve returns the block's data and relocates it to a fresh random leaf.
// It returns ErrNotFound if id is not stored.
func (o *Client) Retrieve(id int) ([]byte, error) {
	if err := o.checkSession(); err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, ErrInvalidBlockID
	}
	if !o.posMap.Contains(id) {
		return nil, ErrNotFound
	}

	var result []byte
	err := o.run("retrieve", id, func(t *txn) error {
		leaf, _ := t.position(id)
		data, err := o.removeFromPath(t, id, leaf)
		if err != nil {
			return err
		}
		t.removePosition(id)
		if err := o.store(t, id, data, leaf); err != nil {
			return err
		}
		result = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), result...), nil
}

// Delete removes the block. It returns ErrNotFound if id is not stored.
func (o *Client) Delete(id int) error {
	if err := o.checkSession(); err != nil {
		return err
	}
	if id < 0 {
		return ErrInvalidBlockID
	}
	if !o.posMap.Contains(id) {
		return ErrNotFound
	}

	return o.run("delete", id, func(t *txn) error {
		leaf, _ := t.position(id)
		if _, err := o.removeFromPath(t, id, leaf); err != nil {
			return err
		}
		t.removePosition(id)
		return nil
	})
}

// run executes op inside a transaction and commits it. Any error before
// commit leaves storage and the position map untouched.
func (o *Client) run(op string, id int, fn func(t *txn) error) error {
	t := o.begin()
	err := fn(t)
	if err == nil {
		err = t.commit()
	}
	if err != nil {
		t.rollback()
		if IsFatal(err) {
			o.failed = err
			o.log.Error("operation failed, session terminated",
				zap.String("op", op), zap.Int("id", id), zap.Error(err))
		} else {
			o.log.Warn("operation aborted", zap.String("op", op), zap.Int("id", id), zap.Error(err))
		}
		return err
	}
	o.log.Debug(op, zap.Int("id", id), zap.Int("buckets_written", len(t.order)))
	return nil
}

func (o *Client) checkSession() error {
	if o.failed != nil {
		return fmt.Errorf("%w: %v", ErrSessionFailed, o.failed)
	}
	return nil
}

// store inserts the block into the root, assigns a leaf and evicts.
// A non-negative prevLeaf is excluded from the leaf draw.
func (o *Client) store(t *txn, id int, data []byte, prevLeaf int) error {
	root, err := t.readBlocks(RootIndex)
	if err != nil {
		return err
	}
	slot := o.firstDummySlot(root)
	if slot < 0 {
		return fmt.Errorf("%w: root full while storing block %d", ErrNoFreeSlot, id)
	}
	root[slot] = RealBlock(id, data)
	if err := t.writeBlocks(RootIndex, root); err != nil {
		return err
	}

	leaf := o.randomLeaf()
	if prevLeaf >= 0 {
		leaf = o.randomLeafExcept(prevLeaf)
	}
	t.setPosition(id, leaf)

	return o.evict(t)
}

// removeFromPath reads every bucket on the path to leaf, replaces the first
// slot holding id with a dummy and rewrites all of them.
func (o *Client) removeFromPath(t *txn, id, leaf int) ([]byte, error) {
	path := o.geo.PathToLeaf(leaf)
	buckets, err := t.readMany(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	found := false
	for i, idx := range path {
		blocks := buckets[i]
		if !found {
			if slot := o.findBlock(blocks, id); slot >= 0 {
				data = blocks[slot].Data
				blocks[slot] = DummyBlock()
				found = true
			}
		}
		if err := t.writeBlocks(idx, blocks); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: block %d missing from path to leaf %d", ErrInvariant, id, leaf)
	}
	return data, nil
}

// initialize fills every bucket with independently encrypted dummies.
func (o *Client) initialize() error {
	dummies := make([]Block, o.geo.BucketSize)
	for i := range dummies {
		dummies[i] = DummyBlock()
	}

	bw, batched := o.storage.(BatchWriter)
	for start := 0; start < o.geo.TreeSize; start += initBatch {
		end := min(start+initBatch, o.geo.TreeSize)
		indices := make([]int, 0, end-start)
		buckets := make([]Bucket, 0, end-start)
		for idx := start; idx < end; idx++ {
			b, err := o.sealBucket(idx, dummies)
			if err != nil {
				return err
			}
			indices = append(indices, idx)
			buckets = append(buckets, b)
		}

		if batched {
			if err := bw.WriteBuckets(indices, buckets); err != nil {
				return fmt.Errorf("initialize tree: %w", err)
			}
			continue
		}
		for i, idx := range indices {
			if err := o.storage.WriteBucket(idx, buckets[i]); err != nil {
				return fmt.Errorf("initialize tree: %w", err)
			}
		}
	}
	return nil
}

// openBucket decrypts all Z slots of a bucket.
func (o *Client) openBucket(idx int, bucket Bucket) ([]Block, error) {
	if len(bucket) != o.geo.BucketSize {
		return nil, fmt.Errorf("%w: bucket %d has %d slots, want %d",
			ErrIntegrity, idx, len(bucket), o.geo.BucketSize)
	}
	blocks := make([]Block, len(bucket))
	for slot, ct := range bucket {
		b, err := o.cipher.Decrypt(idx, slot, ct)
		if err != nil {
			return nil, err
		}
		blocks[slot] = b
	}
	return blocks, nil
}

// sealBucket encrypts every slot with fresh randomness.
func (o *Client) sealBucket(idx int, blocks []Block) (Bucket, error) {
	if len(blocks) != o.geo.BucketSize {
		return nil, fmt.Errorf("%w: sealing %d blocks into bucket %d of size %d",
			ErrInvariant, len(blocks), idx, o.geo.BucketSize)
	}
	bucket := make(Bucket, len(blocks))
	for slot, b := range blocks {
		ct, err := o.cipher.Encrypt(idx, slot, b)
		if err != nil {
			return nil, err
		}
		bucket[slot] = ct
	}
	return bucket, nil
}

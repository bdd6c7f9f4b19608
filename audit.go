package pathoram

import (
	"fmt"

	"go.uber.org/zap"
)

// AuditReport summarizes a full scan of the tree.
type AuditReport struct {
	Buckets        int
	RealBlocks     int
	DummyBlocks    int
	LevelOccupancy []int // real blocks per level, root first
	MaxBucketLoad  int   // most real blocks found in a single bucket
}

// Audit reads and decrypts every bucket and checks that each live block
// appears exactly once, on the path of its assigned leaf, and that nothing
// else is stored. Nothing is written back. A failed audit is fatal.
func (o *Client) Audit() (AuditReport, error) {
	if err := o.checkSession(); err != nil {
		return AuditReport{}, err
	}
	report, err := o.audit()
	if err != nil {
		if IsFatal(err) {
			o.failed = err
			o.log.Error("audit failed, session terminated", zap.Error(err))
		}
		return AuditReport{}, err
	}
	o.log.Debug("audit",
		zap.Int("real", report.RealBlocks),
		zap.Int("dummy", report.DummyBlocks),
		zap.Ints("level_occupancy", report.LevelOccupancy))
	return report, nil
}

func (o *Client) audit() (AuditReport, error) {
	report := AuditReport{
		Buckets:        o.geo.TreeSize,
		LevelOccupancy: make([]int, o.geo.Height+1),
	}
	seen := make(map[int]int, o.posMap.Size())

	for start := 0; start < o.geo.TreeSize; start += initBatch {
		end := min(start+initBatch, o.geo.TreeSize)
		indices := make([]int, 0, end-start)
		for idx := start; idx < end; idx++ {
			indices = append(indices, idx)
		}
		buckets, err := o.storage.GetBuckets(indices)
		if err != nil {
			return report, fmt.Errorf("read buckets: %w", err)
		}

		for i, idx := range indices {
			blocks, err := o.openBucket(idx, buckets[i])
			if err != nil {
				return report, err
			}
			load := 0
			for _, b := range blocks {
				if b.IsDummy() {
					report.DummyBlocks++
					continue
				}
				if prev, dup := seen[b.ID]; dup {
					return report, fmt.Errorf("%w: block %d found in buckets %d and %d",
						ErrInvariant, b.ID, prev, idx)
				}
				seen[b.ID] = idx
				leaf, ok := o.posMap.Get(b.ID)
				if !ok {
					return report, fmt.Errorf("%w: stale block %d in bucket %d", ErrInvariant, b.ID, idx)
				}
				if !o.geo.OnPath(idx, leaf) {
					return report, fmt.Errorf("%w: block %d in bucket %d is off the path to leaf %d",
						ErrInvariant, b.ID, idx, leaf)
				}
				load++
				report.RealBlocks++
				report.LevelOccupancy[Level(idx)]++
			}
			report.MaxBucketLoad = max(report.MaxBucketLoad, load)
		}
	}

	if len(seen) != o.posMap.Size() {
		return report, fmt.Errorf("%w: %d live blocks but %d found in tree",
			ErrInvariant, o.posMap.Size(), len(seen))
	}
	return report, nil
}

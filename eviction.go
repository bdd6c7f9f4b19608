package pathoram

import "fmt"

// evict pushes blocks from shallow buckets toward the leaves. It runs after
// every store. Bucket and slot choices are purely structural: the root at
// level 0, two distinct random buckets at every other non-leaf level, and one
// random slot per chosen bucket whether it holds real data or a dummy.
func (o *Client) evict(t *txn) error {
	for level := 0; level < o.geo.Height; level++ {
		var chosen []int
		if level == 0 {
			chosen = []int{RootIndex}
		} else {
			a, b := o.sampleTwo(o.geo.NodesAtLevel(level))
			chosen = []int{a, b}
		}

		buckets, err := t.readMany(chosen)
		if err != nil {
			return err
		}
		for i, idx := range chosen {
			if err := o.evictBucket(t, idx, buckets[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// evictBucket moves one randomly chosen slot of bucket idx into a child.
// The bucket and both of its children are rewritten every time: the
// destination child receives the candidate and the other child a dummy.
// A real candidate whose destination is full stays where it is; the same
// buckets are still rewritten.
func (o *Client) evictBucket(t *txn, idx int, blocks []Block) error {
	slot := o.randomInt(len(blocks))
	if o.geo.IsLeaf(idx) {
		return t.writeBlocks(idx, blocks)
	}
	candidate := blocks[slot]

	left, right := LeftChild(idx), RightChild(idx)
	var dest int
	if candidate.IsDummy() {
		dest = left
		if o.randomInt(2) == 1 {
			dest = right
		}
	} else {
		leaf, ok := t.position(candidate.ID)
		if !ok {
			return fmt.Errorf("%w: block %d in bucket %d has no position", ErrInvariant, candidate.ID, idx)
		}
		if !o.geo.OnPath(idx, leaf) {
			return fmt.Errorf("%w: block %d in bucket %d is off the path to leaf %d",
				ErrInvariant, candidate.ID, idx, leaf)
		}
		dest = o.geo.ChildToward(idx, leaf)
	}

	children := []int{left, right}
	childBlocks, err := t.readMany(children)
	if err != nil {
		return err
	}

	push := candidate
	destBlocks := childBlocks[0]
	if dest == right {
		destBlocks = childBlocks[1]
	}
	if !candidate.IsDummy() && o.firstDummySlot(destBlocks) < 0 {
		push = DummyBlock()
	} else {
		blocks[slot] = DummyBlock()
	}
	if err := t.writeBlocks(idx, blocks); err != nil {
		return err
	}

	for i, child := range children {
		b := DummyBlock()
		if child == dest {
			b = push
		}
		if err := o.insertBlock(t, child, childBlocks[i], b); err != nil {
			return err
		}
	}
	return nil
}

// insertBlock puts b into the first dummy slot of bucket idx and rewrites the
// whole bucket. A dummy pushed into a full bucket leaves it unchanged apart
// from fresh ciphertext.
func (o *Client) insertBlock(t *txn, idx int, blocks []Block, b Block) error {
	slot := o.firstDummySlot(blocks)
	if slot < 0 {
		if b.IsDummy() {
			return t.writeBlocks(idx, blocks)
		}
		return fmt.Errorf("%w: bucket %d full while evicting block %d", ErrNoFreeSlot, idx, b.ID)
	}
	blocks[slot] = b
	return t.writeBlocks(idx, blocks)
}

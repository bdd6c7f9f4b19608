package pathoram

import "crypto/subtle"

// firstDummySlot returns the first dummy slot in fixed linear order, or -1.
// The scan order is the same in both modes; ConstantTime only removes the
// early exit.
func (o *Client) firstDummySlot(blocks []Block) int {
	if o.cfg.ConstantTime {
		return firstDummySlotConstantTime(blocks)
	}
	for i := range blocks {
		if blocks[i].IsDummy() {
			return i
		}
	}
	return -1
}

// findBlock returns the slot holding id, or -1.
func (o *Client) findBlock(blocks []Block, id int) int {
	if o.cfg.ConstantTime {
		return findBlockConstantTime(blocks, id)
	}
	for i := range blocks {
		if !blocks[i].IsDummy() && blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// firstDummySlotConstantTime scans every slot regardless of where the first
// dummy sits.
func firstDummySlotConstantTime(blocks []Block) int {
	found := -1
	seen := 0
	for i := range blocks {
		isDummy := subtle.ConstantTimeByteEq(byte(blocks[i].Kind), byte(KindDummy))
		take := isDummy & (1 ^ seen)
		found = subtle.ConstantTimeSelect(take, i, found)
		seen |= isDummy
	}
	return found
}

// findBlockConstantTime searches the bucket without timing leaks.
// Always iterates through every slot regardless of match.
func findBlockConstantTime(blocks []Block, id int) int {
	found := -1
	seen := 0
	for i := range blocks {
		isReal := subtle.ConstantTimeByteEq(byte(blocks[i].Kind), byte(KindReal))
		match := isReal & idEq(blocks[i].ID, id)
		take := match & (1 ^ seen)
		found = subtle.ConstantTimeSelect(take, i, found)
		seen |= match
	}
	return found
}

func idEq(a, b int) int {
	ua, ub := uint64(a), uint64(b)
	return subtle.ConstantTimeEq(int32(ua>>32), int32(ub>>32)) &
		subtle.ConstantTimeEq(int32(ua), int32(ub))
}

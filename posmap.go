package pathoram

// PositionMap tracks block-to-leaf assignments on the client.
// Leaves are bucket indices. The map never leaves the client.
type PositionMap interface {
	// Get returns the leaf position for blockID.
	// Returns (leaf, true) if found, (0, false) if not.
	Get(blockID int) (leaf int, exists bool)

	// Set assigns blockID to leaf.
	Set(blockID int, leaf int)

	// Remove drops the assignment for blockID, if any.
	Remove(blockID int)

	// Contains reports whether blockID has an assigned leaf.
	Contains(blockID int) bool

	// Size returns the number of blocks with assigned positions.
	Size() int
}

// InMemoryPositionMap implements PositionMap using a Go map.
type InMemoryPositionMap struct {
	m map[int]int
}

// NewInMemoryPositionMap creates a new empty position map.
func NewInMemoryPositionMap() *InMemoryPositionMap {
	return &InMemoryPositionMap{
		m: make(map[int]int),
	}
}

// Get returns the leaf position for blockID.
func (p *InMemoryPositionMap) Get(blockID int) (int, bool) {
	leaf, ok := p.m[blockID]
	return leaf, ok
}

// Set assigns blockID to leaf.
func (p *InMemoryPositionMap) Set(blockID int, leaf int) {
	p.m[blockID] = leaf
}

// Remove drops the assignment for blockID.
func (p *InMemoryPositionMap) Remove(blockID int) {
	delete(p.m, blockID)
}

// Contains reports whether blockID has an assigned leaf.
func (p *InMemoryPositionMap) Contains(blockID int) bool {
	_, ok := p.m[blockID]
	return ok
}

// Size returns the number of blocks with assigned positions.
func (p *InMemoryPositionMap) Size() int {
	return len(p.m)
}

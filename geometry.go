package pathoram

import (
	"fmt"
	"math/bits"
)

// RootIndex is the bucket index of the tree root.
const RootIndex = 0

// Geometry describes the shape of the ORAM tree for a given capacity.
// Buckets are laid out in level order: root at 0, children of i at 2i+1 and 2i+2,
// leaves occupying the last LeafCount indices.
type Geometry struct {
	Capacity   int // N, number of blocks supported
	Height     int // H, number of edges from root to any leaf
	BucketSize int // Z, slots per bucket
	LeafCount  int // 2^H
	TreeSize   int // 2*2^H - 1
}

// NewGeometry computes the tree shape for capacity n.
// H = max(0, ceil(log2 n) - 1) and Z = ceil(log2 n). A single-bucket tree
// (n <= 2) never evicts, so its root holds all n blocks.
// A positive bucketSize overrides the derived Z.
func NewGeometry(n, bucketSize int) (Geometry, error) {
	if n <= 0 || bucketSize < 0 {
		return Geometry{}, ErrInvalidConfig
	}
	logN := ceilLog2(n)
	height := max(0, logN-1)

	z := logN
	if height == 0 {
		z = n
	}
	if bucketSize > 0 {
		z = bucketSize
	}

	leaves := 1 << height
	return Geometry{
		Capacity:   n,
		Height:     height,
		BucketSize: z,
		LeafCount:  leaves,
		TreeSize:   2*leaves - 1,
	}, nil
}

// ceilLog2 returns ceil(log2(n)) for n >= 1.
func ceilLog2(n int) int {
	return bits.Len(uint(n - 1))
}

// Parent returns the parent index of node i.
func Parent(i int) int {
	return (i - 1) / 2
}

// LeftChild returns the left child index of node i.
func LeftChild(i int) int {
	return 2*i + 1
}

// RightChild returns the right child index of node i.
func RightChild(i int) int {
	return 2*i + 2
}

// Level returns the depth of node i (root is level 0).
func Level(i int) int {
	return bits.Len(uint(i+1)) - 1
}

// FirstLeaf returns the bucket index of the leftmost leaf.
func (g Geometry) FirstLeaf() int {
	return g.LeafCount - 1
}

// Valid reports whether i is a bucket index inside the tree.
func (g Geometry) Valid(i int) bool {
	return i >= 0 && i < g.TreeSize
}

// IsLeaf reports whether bucket i is a leaf.
func (g Geometry) IsLeaf(i int) bool {
	return i >= g.FirstLeaf() && i < g.TreeSize
}

// Leaves returns the bucket indices of all leaves, left to right.
func (g Geometry) Leaves() []int {
	leaves := make([]int, g.LeafCount)
	for i := range leaves {
		leaves[i] = g.FirstLeaf() + i
	}
	return leaves
}

// PathToLeaf returns bucket indices from the root down to leaf (H+1 entries).
// leaf is a bucket index, not an offset among leaves.
func (g Geometry) PathToLeaf(leaf int) []int {
	g.mustLeaf(leaf)
	path := make([]int, g.Height+1)
	node := leaf
	for i := g.Height; i >= 0; i-- {
		path[i] = node
		node = Parent(node)
	}
	return path
}

// NodesAtLevel returns the first and last bucket index of the given level.
func (g Geometry) NodesAtLevel(level int) (first, last int) {
	if level < 0 || level > g.Height {
		panic(fmt.Sprintf("pathoram: level %d outside tree of height %d", level, g.Height))
	}
	first = (1 << level) - 1
	return first, 2 * first
}

// OnPath reports whether bucket node lies on the root-to-leaf path of leaf.
func (g Geometry) OnPath(node, leaf int) bool {
	g.mustLeaf(leaf)
	depth := Level(node)
	// Lift leaf to node's depth.
	b := leaf
	for l := g.Height; l > depth; l-- {
		b = Parent(b)
	}
	return b == node
}

// ChildToward returns the child of node that lies on the path to leaf.
func (g Geometry) ChildToward(node, leaf int) int {
	if !g.Valid(node) || g.IsLeaf(node) {
		panic(fmt.Sprintf("pathoram: bucket %d has no children", node))
	}
	g.mustLeaf(leaf)
	depth := Level(node) + 1
	b := leaf
	for l := g.Height; l > depth; l-- {
		b = Parent(b)
	}
	if Parent(b) != node {
		panic(fmt.Sprintf("pathoram: leaf %d is not below bucket %d", leaf, node))
	}
	return b
}

func (g Geometry) mustLeaf(leaf int) {
	if !g.IsLeaf(leaf) {
		panic(fmt.Sprintf("pathoram: bucket %d is not a leaf (leaves are %d..%d)",
			leaf, g.FirstLeaf(), g.TreeSize-1))
	}
}

package pathoram

import (
	"crypto/rand"
	"math/big"
)

// randomInt returns a uniform integer in [0, n) from the configured secure source.
func (o *Client) randomInt(n int) int {
	v, err := rand.Int(o.cfg.Rand, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}

// randomLeaf returns a uniformly random leaf bucket index.
func (o *Client) randomLeaf() int {
	return o.geo.FirstLeaf() + o.randomInt(o.geo.LeafCount)
}

// randomLeafExcept returns a uniformly random leaf other than prev, unless the
// tree has a single leaf.
func (o *Client) randomLeafExcept(prev int) int {
	if o.geo.LeafCount < 2 || !o.geo.IsLeaf(prev) {
		return o.randomLeaf()
	}
	off := o.randomInt(o.geo.LeafCount - 1)
	if off >= prev-o.geo.FirstLeaf() {
		off++
	}
	return o.geo.FirstLeaf() + off
}

// sampleTwo returns two distinct uniform indices from [first, last].
func (o *Client) sampleTwo(first, last int) (int, int) {
	n := last - first + 1
	a := o.randomInt(n)
	b := o.randomInt(n - 1)
	if b >= a {
		b++
	}
	return first + a, first + b
}

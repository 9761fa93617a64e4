package ggm

/*
GGM tree expansion in the style of Goldreich, Goldwasser and Micali,
the puncturable PRF underlying single point correlated OT.

One seed expands level by level through a two key AES permutation
into 2^depth pseudorandom leaves. Each level records the XOR of all
left children and of all right children; handing a receiver one of
the two per level lets it rebuild every leaf except the one on a
secret path, without learning anything about that leaf.
*/

import (
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
)

var (
	ErrDepth    = errors.New("tree depth must be at least 1")
	ErrKeyCount = errors.New("co-path key count does not match the path length")
)

// the two fixed public AES keys of the expansion permutation; both
// parties derive the same tree from a shared seed through them.
var (
	leftKey  = block.Block{Hi: 0x8393b154a1d53c9c, Lo: 0x7d2c4c11a6a42879}
	rightKey = block.Block{Hi: 0x1b56c95a3cf5da1e, Lo: 0xe0f83c2bd9074b13}
)

var (
	prpOnce sync.Once
	prp     *crypto.TwoKeyPRP
)

func treePRP() *crypto.TwoKeyPRP {
	prpOnce.Do(func() {
		var err error
		prp, err = crypto.NewTwoKeyPRP(leftKey, rightKey)
		if err != nil {
			// the fixed keys are well formed
			panic(err)
		}
	})
	return prp
}

// parents below this count expand serially; the goroutine overhead
// dominates on small levels
const parallelThreshold = 1 << 9

// Tree is the sender side of one GGM expansion: all 2^depth leaves
// plus the per level co-path keys.
type Tree struct {
	Leaves []block.Block
	// K0[h] is the XOR of all left children at level h+1, K1[h] of
	// all right children.
	K0 []block.Block
	K1 []block.Block
}

// Gen expands seed into a full tree of 2^depth leaves.
func Gen(seed block.Block, depth int) (*Tree, error) {
	if depth < 1 {
		return nil, ErrDepth
	}

	p := treePRP()
	t := &Tree{
		K0: make([]block.Block, depth),
		K1: make([]block.Block, depth),
	}

	level := []block.Block{seed}
	for h := 0; h < depth; h++ {
		next := make([]block.Block, 2*len(level))
		if err := expandLevel(p, level, next); err != nil {
			return nil, err
		}
		// deterministic left to right reduction
		for i := 0; i < len(next); i += 2 {
			t.K0[h].XorEq(next[i])
			t.K1[h].XorEq(next[i+1])
		}
		level = next
	}
	t.Leaves = level
	return t, nil
}

// expandLevel writes the children of every parent into next, sharded
// across goroutines on large levels. Shards write disjoint index
// ranges so the output is identical to the serial pass.
func expandLevel(p *crypto.TwoKeyPRP, level, next []block.Block) error {
	if len(level) < parallelThreshold {
		for i, parent := range level {
			next[2*i], next[2*i+1] = p.Expand(parent)
		}
		return nil
	}

	workers := runtime.NumCPU()
	chunk := (len(level) + workers - 1) / workers
	g := new(errgroup.Group)
	for from := 0; from < len(level); from += chunk {
		from := from
		to := from + chunk
		if to > len(level) {
			to = len(level)
		}
		g.Go(func() error {
			for i := from; i < to; i++ {
				next[2*i], next[2*i+1] = p.Expand(level[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// Index returns the leaf index selected by the path alpha, MSB
// first; a false bit takes the right (1) branch.
func Index(alpha []bool) int {
	idx := 0
	for _, bit := range alpha {
		idx <<= 1
		if !bit {
			idx |= 1
		}
	}
	return idx
}

// Reconstruct rebuilds every leaf except Index(alpha) from the
// co-path keys: keys[h] is K1[h] when alpha[h] is true and K0[h]
// otherwise, the sibling side of the path at every level. The slot
// at Index(alpha) is left zero and carries no information.
func Reconstruct(alpha []bool, keys []block.Block) ([]block.Block, error) {
	depth := len(alpha)
	if depth < 1 {
		return nil, ErrDepth
	}
	if len(keys) != depth {
		return nil, ErrKeyCount
	}

	p := treePRP()
	level := make([]block.Block, 1)
	miss := 0

	for h := 0; h < depth; h++ {
		next := make([]block.Block, 2*len(level))
		for i := range level {
			if i == miss {
				continue
			}
			next[2*i], next[2*i+1] = p.Expand(level[i])
		}

		// the path side of the missing parent stays unknown; the
		// sibling side cancels out of the level key
		path := 1
		off := 0
		if alpha[h] {
			path, off = 0, 1
		}

		sibling := keys[h]
		for i := range level {
			if i == miss {
				continue
			}
			sibling.XorEq(next[2*i+off])
		}
		next[2*miss+off] = sibling

		miss = 2*miss + path
		level = next
	}
	level[miss] = block.Block{}
	return level, nil
}

package spcot

/*
Single point and multi point correlated OT in the style of Yang,
Weng, Lan, Wang and Gu, "Ferret: Fast Extension for Correlated OT
with Small Communication" (2020).

A single point instance gives both parties vectors over a power of
two domain that agree everywhere except one receiver chosen position,
where they differ by the sender's Delta. The GGM tree provides the
vectors; one correlated OT per tree level delivers the co-path key
opposite each bit of the hidden path, derandomized against the
receiver's real path bits. The multi point instance scatters t such
points over [0, n) through cuckoo allocation, one single point
instance per bin.
*/

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/ggm"
	"github.com/optable/silentot/internal/util"
)

var (
	ErrQueryCount       = errors.New("invalid query points for the domain")
	ErrCotCount         = errors.New("correlated OT count does not match the tree depths")
	ErrDomainLength     = errors.New("vector length does not match the power of two bucket domain")
	ErrConsistencyCheck = errors.New("multi point consistency check failed")
	ErrInvalidState     = errors.New("batch phase already consumed or out of order")
)

// PointRequest carries the packed flip bits derandomizing the level
// COT choice bits against the hidden path of one tree.
type PointRequest struct {
	Flips []byte
}

// PointResponse carries the masked co-path key pairs, one per tree
// level, and the Delta corrected leaf sum letting the receiver fill
// its hidden slot.
type PointResponse struct {
	Pairs [][2]block.Block
	Sum   block.Block
}

// RequestPoint derandomizes the level COTs of one single point
// instance: bits are the receiver's random COT choice bits and alpha
// the hidden path, one bit per level.
func RequestPoint(alpha, bits []bool) (*PointRequest, error) {
	if len(bits) != len(alpha) {
		return nil, ErrCotCount
	}
	flips := make([]bool, len(alpha))
	for h := range alpha {
		flips[h] = bits[h] != alpha[h]
	}
	return &PointRequest{Flips: util.PackBools(flips)}, nil
}

// RespondPoint expands a fresh seed into a depth level tree and
// masks each co-path key pair under the level COT blocks, swapped by
// the request flips. cots are the sender side blocks of one COT per
// level and tweak namespaces the key derivation of this instance.
// It returns the sender vector of 1<<depth leaves.
func RespondPoint(delta block.Block, depth int, cots []block.Block, req *PointRequest, tweak uint64) (*PointResponse, []block.Block, error) {
	if len(cots) != depth {
		return nil, nil, ErrCotCount
	}

	seed, err := block.New(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	tree, err := ggm.Gen(seed, depth)
	if err != nil {
		return nil, nil, err
	}

	resp := &PointResponse{Pairs: make([][2]block.Block, depth), Sum: delta}
	flips := util.UnpackBools(req.Flips, depth)
	for h := 0; h < depth; h++ {
		// the receiver holds cots[h] XOR b*Delta and recovers the
		// mask of the side matching its path bit
		m0 := crypto.CrHash(cots[h], tweak+uint64(2*h))
		m1 := crypto.CrHash(cots[h].Xor(delta), tweak+uint64(2*h))
		if flips[h] {
			m0, m1 = m1, m0
		}
		resp.Pairs[h][0] = tree.K0[h].Xor(m0)
		resp.Pairs[h][1] = tree.K1[h].Xor(m1)
	}
	for _, leaf := range tree.Leaves {
		resp.Sum.XorEq(leaf)
	}
	return resp, tree.Leaves, nil
}

// RecoverPoint rebuilds the receiver vector from a point response:
// equal to the sender vector everywhere except Index(alpha), where
// it differs by Delta. cots are the receiver side COT blocks
// matching the bits passed to RequestPoint.
func RecoverPoint(alpha []bool, cots []block.Block, resp *PointResponse, tweak uint64) ([]block.Block, error) {
	depth := len(alpha)
	if len(cots) != depth || len(resp.Pairs) != depth {
		return nil, ErrCotCount
	}

	keys := make([]block.Block, depth)
	for h := 0; h < depth; h++ {
		mask := crypto.CrHash(cots[h], tweak+uint64(2*h))
		side := 0
		if alpha[h] {
			side = 1
		}
		keys[h] = resp.Pairs[h][side].Xor(mask)
	}

	leaves, err := ggm.Reconstruct(alpha, keys)
	if err != nil {
		return nil, err
	}

	// fill the hidden slot from the Delta corrected sum
	hidden := resp.Sum
	for i, leaf := range leaves {
		if i == ggm.Index(alpha) {
			continue
		}
		hidden.XorEq(leaf)
	}
	leaves[ggm.Index(alpha)] = hidden
	return leaves, nil
}

// alphaFromIndex encodes a leaf index as a path, the inverse of
// ggm.Index: a zero bit of the index maps to a true path bit.
func alphaFromIndex(idx uint64, depth int) []bool {
	alpha := make([]bool, depth)
	for h := 0; h < depth; h++ {
		alpha[h] = (idx>>(depth-1-h))&1 == 0
	}
	return alpha
}

func packErr(context string, err error) error {
	return fmt.Errorf("%s: %w", context, err)
}

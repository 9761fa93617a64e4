package spcot

import (
	"sort"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/cuckoo"
	"github.com/optable/silentot/internal/util"
)

// bucket is the domain of one single point instance: the positions
// of [0, n) any of the cuckoo hashers maps into one bin, ascending,
// plus the tree depth covering them with one spare dummy slot.
type bucket struct {
	positions []uint64
	depth     int
}

// buildBuckets derives the bin to position map both parties share.
// Every position lands in the bucket of each of its distinct bins.
func buildBuckets(n uint64, hasher *cuckoo.Hasher) []bucket {
	buckets := make([]bucket, hasher.BinCount())
	for x := uint64(0); x < n; x++ {
		idxs := hasher.BinIndices(x)
		for i, b := range idxs {
			dup := false
			for _, prev := range idxs[:i] {
				if prev == b {
					dup = true
					break
				}
			}
			if !dup {
				buckets[b].positions = append(buckets[b].positions, x)
			}
		}
	}
	for i := range buckets {
		buckets[i].depth = dummyDepth(len(buckets[i].positions))
	}
	return buckets
}

// dummyDepth is the tree depth over count real positions plus one
// dummy slot for empty bins.
func dummyDepth(count int) int {
	depth := 1
	for 1<<depth < count+1 {
		depth++
	}
	return depth
}

const (
	multiInit = iota
	multiResponded
	multiChecked
)

// MultiSender is the sender of one multi point batch: t hidden
// points scattered over [0, n), assembled from one single point
// instance per cuckoo bin.
type MultiSender struct {
	delta    block.Block
	n        uint64
	t        uint64
	buckets  []bucket
	cotCount int
	phase    int
	vec      []block.Block
	check    block.Block
	decommit crypto.Decommitment
}

// NewMultiSender prepares the sender side bucket structure from the
// shared hash seed.
func NewMultiSender(n, t uint64, hashSeed, delta block.Block) (*MultiSender, error) {
	if t > n || t == 0 {
		return nil, ErrQueryCount
	}
	hasher, err := cuckoo.NewHasher(t, hashSeed)
	if err != nil {
		return nil, err
	}
	buckets := buildBuckets(n, hasher)
	return &MultiSender{
		delta:    delta,
		n:        n,
		t:        t,
		buckets:  buckets,
		cotCount: totalDepth(buckets),
	}, nil
}

// CotCount returns the number of bootstrap correlated OTs one batch
// consumes, one per tree level over all bins.
func (s *MultiSender) CotCount() int {
	return s.cotCount
}

// Respond runs every bin's single point instance and assembles the
// sender vector. cots are the sender side blocks of CotCount
// correlated OTs. The response carries a commitment to the batch
// checksum, opened after the receiver's proof.
func (s *MultiSender) Respond(req *MultiRequest, cots []block.Block) (*MultiResponse, error) {
	if s.phase != multiInit {
		return nil, packErr("respond", ErrInvalidState)
	}
	if len(cots) != s.cotCount {
		return nil, ErrCotCount
	}

	resp := &MultiResponse{Sums: make([]block.Block, len(s.buckets))}
	s.vec = make([]block.Block, s.n)

	offset := 0
	for i, b := range s.buckets {
		flips := sliceFlips(req.Flips, offset, b.depth)
		pr, leaves, err := RespondPoint(s.delta, b.depth, cots[offset:offset+b.depth], &PointRequest{Flips: flips}, uint64(2*offset))
		if err != nil {
			return nil, packErr("bin response", err)
		}
		resp.Pairs = append(resp.Pairs, pr.Pairs...)
		resp.Sums[i] = pr.Sum
		for p, x := range b.positions {
			s.vec[x].XorEq(leaves[p])
		}
		offset += b.depth
	}

	// checksum the assembled vector; the receiver side differs by
	// Delta at each of its t points
	for _, v := range s.vec {
		s.check.XorEq(v)
	}
	if s.t%2 == 1 {
		s.check.XorEq(s.delta)
	}
	c, d, err := crypto.Commit(s.check.Bytes())
	if err != nil {
		return nil, err
	}
	s.decommit = d
	resp.Commitment = c

	s.phase = multiResponded
	return resp, nil
}

// Check verifies the receiver proof against the batch checksum and
// opens the commitment. A mismatch is fatal to the whole batch.
func (s *MultiSender) Check(proof *CheckProof) (*CheckOpen, error) {
	if s.phase != multiResponded {
		return nil, packErr("check", ErrInvalidState)
	}
	if !proof.Z.Equal(s.check) {
		return nil, ErrConsistencyCheck
	}
	s.phase = multiChecked
	return &CheckOpen{Decommitment: s.decommit}, nil
}

// Vector returns the assembled sender vector of length n after a
// successful check.
func (s *MultiSender) Vector() ([]block.Block, error) {
	if s.phase != multiChecked {
		return nil, packErr("vector before check", ErrInvalidState)
	}
	return s.vec, nil
}

// MultiReceiver is the receiver of one multi point batch.
type MultiReceiver struct {
	n        uint64
	t        uint64
	hashSeed block.Block
	buckets  []bucket
	cotCount int
	phase    int
	alphas   [][]bool
	vec      []block.Block
	z        block.Block
	commit   crypto.Commitment
}

// NewMultiReceiver prepares the receiver side bucket structure from
// the shared hash seed.
func NewMultiReceiver(n, t uint64, hashSeed block.Block) (*MultiReceiver, error) {
	if t > n || t == 0 {
		return nil, ErrQueryCount
	}
	hasher, err := cuckoo.NewHasher(t, hashSeed)
	if err != nil {
		return nil, err
	}
	buckets := buildBuckets(n, hasher)
	return &MultiReceiver{
		n:        n,
		t:        t,
		hashSeed: hashSeed,
		buckets:  buckets,
		cotCount: totalDepth(buckets),
	}, nil
}

// CotCount returns the number of bootstrap correlated OTs one batch
// consumes.
func (r *MultiReceiver) CotCount() int {
	return r.cotCount
}

// Request places the t target indices into the cuckoo table and
// derandomizes every bin's level COTs against its hidden path. bits
// are the receiver's CotCount random COT choice bits. Indices must
// be distinct and below n.
func (r *MultiReceiver) Request(indices []uint64, bits []bool) (*MultiRequest, error) {
	if r.phase != multiInit {
		return nil, packErr("request", ErrInvalidState)
	}
	if uint64(len(indices)) != r.t {
		return nil, ErrQueryCount
	}
	if len(bits) != r.cotCount {
		return nil, ErrCotCount
	}
	seen := make(map[uint64]bool, len(indices))
	for _, idx := range indices {
		if idx >= r.n || seen[idx] {
			return nil, ErrQueryCount
		}
		seen[idx] = true
	}

	table, err := cuckoo.NewCuckoo(r.t, r.hashSeed)
	if err != nil {
		return nil, err
	}
	for _, idx := range indices {
		if err := table.Insert(idx); err != nil {
			return nil, packErr("allocating query points", err)
		}
	}

	r.alphas = make([][]bool, len(r.buckets))
	flips := make([]bool, 0, r.cotCount)
	offset := 0
	for i, b := range r.buckets {
		point := len(b.positions) // the dummy slot of an empty bin
		if item, _, ok := table.Occupant(uint64(i)); ok {
			p := sort.Search(len(b.positions), func(j int) bool { return b.positions[j] >= item })
			point = p
		}
		alpha := alphaFromIndex(uint64(point), b.depth)
		r.alphas[i] = alpha

		req, err := RequestPoint(alpha, bits[offset:offset+b.depth])
		if err != nil {
			return nil, err
		}
		flips = append(flips, util.UnpackBools(req.Flips, b.depth)...)
		offset += b.depth
	}

	r.phase = multiResponded
	return &MultiRequest{Flips: util.PackBools(flips)}, nil
}

// Recover rebuilds the receiver vector from the batch response and
// produces the checksum proof. cots are the receiver side blocks
// matching the bits passed to Request.
func (r *MultiReceiver) Recover(resp *MultiResponse, cots []block.Block) (*CheckProof, error) {
	if r.phase != multiResponded {
		return nil, packErr("recover", ErrInvalidState)
	}
	if len(cots) != r.cotCount {
		return nil, ErrCotCount
	}
	if len(resp.Pairs) != r.cotCount || len(resp.Sums) != len(r.buckets) {
		return nil, ErrDomainLength
	}

	r.vec = make([]block.Block, r.n)
	offset := 0
	for i, b := range r.buckets {
		pr := &PointResponse{Pairs: resp.Pairs[offset : offset+b.depth], Sum: resp.Sums[i]}
		leaves, err := RecoverPoint(r.alphas[i], cots[offset:offset+b.depth], pr, uint64(2*offset))
		if err != nil {
			return nil, packErr("bin recovery", err)
		}
		if len(leaves) != 1<<b.depth {
			return nil, ErrDomainLength
		}
		for p, x := range b.positions {
			r.vec[x].XorEq(leaves[p])
		}
		offset += b.depth
	}

	for _, v := range r.vec {
		r.z.XorEq(v)
	}
	r.commit = resp.Commitment
	r.phase = multiChecked
	return &CheckProof{Z: r.z}, nil
}

// VerifyOpen checks the sender's opened checksum against the local
// one, catching a tampered response.
func (r *MultiReceiver) VerifyOpen(open *CheckOpen) error {
	if r.phase != multiChecked {
		return packErr("verify", ErrInvalidState)
	}
	if err := r.commit.Verify(open.Decommitment); err != nil {
		return err
	}
	if len(open.Decommitment.Value) != block.Size {
		return ErrConsistencyCheck
	}
	var v block.Block
	v.SetBytes(open.Decommitment.Value)
	if !v.Equal(r.z) {
		return ErrConsistencyCheck
	}
	return nil
}

// Vector returns the assembled receiver vector of length n: equal
// to the sender vector except at the t query indices, where it
// differs by Delta.
func (r *MultiReceiver) Vector() ([]block.Block, error) {
	if r.phase != multiChecked {
		return nil, packErr("vector before recover", ErrInvalidState)
	}
	return r.vec, nil
}

func totalDepth(buckets []bucket) int {
	total := 0
	for _, b := range buckets {
		total += b.depth
	}
	return total
}

// sliceFlips repacks the per-bin window of a batch flip vector.
func sliceFlips(flips []byte, offset, depth int) []byte {
	out := make([]bool, depth)
	for h := 0; h < depth; h++ {
		out[h] = util.BitSetInByte(flips, offset+h) == 1
	}
	return util.PackBools(out)
}

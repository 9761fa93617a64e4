package ferret

/*
Ferret style silent OT amplification: every extend call compresses a
short correlated OT seed pool into a much larger pseudorandom batch
through a multi point correlated OT and the structured LPN encoder.

Per round: a fresh multi point batch gives both parties t-sparse
Delta correlated noise vectors s and r over [0, n); each side then
computes y = A x + noise against its k long seed pool, keeps the
first k entries of y as the next pool and emits the remaining n-k
as fresh correlated OTs. The noise positions are receiver chosen
and never leave the receiver.
*/

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/lpn"
	"github.com/optable/silentot/internal/spcot"
)

var (
	ErrSeedLength   = errors.New("bootstrap pool length does not match the LPN seed length")
	ErrInvalidState = errors.New("extend round already open or not started")
)

// Sender amplifies the sender side of the correlated OT pool. It
// holds the session Delta and the current k long seed pool.
type Sender struct {
	delta    block.Block
	params   lpn.Params
	enc      *lpn.Encoder
	hashSeed block.Block
	v        []block.Block
	round    *spcot.MultiSender
	cotCount int
}

// NewSender bootstraps the sender from k correlated OT blocks, the
// shared LPN parameters and the exchanged matrix and hash seeds.
func NewSender(delta block.Block, v []block.Block, params lpn.Params, matrixSeed, hashSeed block.Block) (*Sender, error) {
	if len(v) != params.K {
		return nil, fmt.Errorf("pool of %d, want k=%d: %w", len(v), params.K, ErrSeedLength)
	}
	enc, err := lpn.NewEncoder(params, matrixSeed)
	if err != nil {
		return nil, err
	}

	// the bucket structure is a function of the hash seed alone, so
	// the per round cot budget is fixed; probe it once
	probe, err := spcot.NewMultiSender(uint64(params.N), uint64(params.T), hashSeed, delta)
	if err != nil {
		return nil, err
	}

	return &Sender{
		delta:    delta,
		params:   params,
		enc:      enc,
		hashSeed: hashSeed,
		v:        append([]block.Block(nil), v...),
		cotCount: probe.CotCount(),
	}, nil
}

// Delta returns the session correlation secret.
func (s *Sender) Delta() block.Block {
	return s.delta
}

// MpcotCotCount returns the number of extra correlated OTs every
// extend round consumes for its multi point trees.
func (s *Sender) MpcotCotCount() int {
	return s.cotCount
}

// Respond opens an extend round: it answers the receiver's multi
// point request with cots drawn from the caller's pool.
func (s *Sender) Respond(req *spcot.MultiRequest, cots []block.Block) (*spcot.MultiResponse, error) {
	if s.round != nil {
		return nil, ErrInvalidState
	}
	round, err := spcot.NewMultiSender(uint64(s.params.N), uint64(s.params.T), s.hashSeed, s.delta)
	if err != nil {
		return nil, err
	}
	resp, err := round.Respond(req, cots)
	if err != nil {
		return nil, err
	}
	s.round = round
	return resp, nil
}

// Finish closes the round: it checks the receiver proof, compresses
// the noise through the LPN encoder, rotates the seed pool and
// emits n-k fresh correlated OT blocks.
func (s *Sender) Finish(proof *spcot.CheckProof) (*spcot.CheckOpen, []block.Block, error) {
	if s.round == nil {
		return nil, nil, ErrInvalidState
	}
	open, err := s.round.Check(proof)
	if err != nil {
		return nil, nil, err
	}
	noise, err := s.round.Vector()
	if err != nil {
		return nil, nil, err
	}

	y := append([]block.Block(nil), noise...)
	if err := s.enc.Compute(s.v, y); err != nil {
		return nil, nil, err
	}

	s.v = append(s.v[:0], y[:s.params.K]...)
	s.round = nil
	return open, y[s.params.K:], nil
}

// Receiver amplifies the receiver side of the pool: blocks w and
// choice bits u with w = v XOR u*Delta against the sender pool.
type Receiver struct {
	params   lpn.Params
	enc      *lpn.Encoder
	hashSeed block.Block
	w        []block.Block
	u        []bool
	round    *spcot.MultiReceiver
	indices  []uint64
	cotCount int
}

// NewReceiver bootstraps the receiver from its k correlated OT
// blocks and choice bits.
func NewReceiver(w []block.Block, u []bool, params lpn.Params, matrixSeed, hashSeed block.Block) (*Receiver, error) {
	if len(w) != params.K || len(u) != params.K {
		return nil, fmt.Errorf("pool of %d/%d, want k=%d: %w", len(w), len(u), params.K, ErrSeedLength)
	}
	enc, err := lpn.NewEncoder(params, matrixSeed)
	if err != nil {
		return nil, err
	}
	probe, err := spcot.NewMultiReceiver(uint64(params.N), uint64(params.T), hashSeed)
	if err != nil {
		return nil, err
	}

	return &Receiver{
		params:   params,
		enc:      enc,
		hashSeed: hashSeed,
		w:        append([]block.Block(nil), w...),
		u:        append([]bool(nil), u...),
		cotCount: probe.CotCount(),
	}, nil
}

// MpcotCotCount returns the number of extra correlated OTs every
// extend round consumes for its multi point trees.
func (r *Receiver) MpcotCotCount() int {
	return r.cotCount
}

// Request opens an extend round: it samples t fresh noise positions
// and derandomizes the round's multi point trees against bits, the
// choice bits of the caller's cot pool slice.
func (r *Receiver) Request(bits []bool) (*spcot.MultiRequest, error) {
	if r.round != nil {
		return nil, ErrInvalidState
	}

	indices, err := sampleIndices(uint64(r.params.N), r.params.T)
	if err != nil {
		return nil, err
	}
	round, err := spcot.NewMultiReceiver(uint64(r.params.N), uint64(r.params.T), r.hashSeed)
	if err != nil {
		return nil, err
	}
	req, err := round.Request(indices, bits)
	if err != nil {
		return nil, err
	}
	r.round = round
	r.indices = indices
	return req, nil
}

// Recover rebuilds the round's noise vector from the sender
// response and produces the batch checksum proof.
func (r *Receiver) Recover(resp *spcot.MultiResponse, cots []block.Block) (*spcot.CheckProof, error) {
	if r.round == nil {
		return nil, ErrInvalidState
	}
	return r.round.Recover(resp, cots)
}

// Finish closes the round: it verifies the sender's checksum open,
// compresses noise and pool through the LPN encoder and emits n-k
// fresh correlated OT blocks with their choice bits.
func (r *Receiver) Finish(open *spcot.CheckOpen) ([]block.Block, []bool, error) {
	if r.round == nil {
		return nil, nil, ErrInvalidState
	}
	if err := r.round.VerifyOpen(open); err != nil {
		return nil, nil, err
	}
	noise, err := r.round.Vector()
	if err != nil {
		return nil, nil, err
	}

	y := append([]block.Block(nil), noise...)
	if err := r.enc.Compute(r.w, y); err != nil {
		return nil, nil, err
	}

	// the sparse indicator of the noise positions, amplified with
	// the exact same matrix over single bits
	e := make([]bool, r.params.N)
	for _, idx := range r.indices {
		e[idx] = true
	}
	if err := r.enc.ComputeBools(r.u, e); err != nil {
		return nil, nil, err
	}

	r.w = append(r.w[:0], y[:r.params.K]...)
	r.u = append(r.u[:0], e[:r.params.K]...)
	r.round = nil
	r.indices = nil
	return y[r.params.K:], e[r.params.K:], nil
}

// sampleIndices draws t distinct positions of [0, n).
func sampleIndices(n uint64, t int) ([]uint64, error) {
	seen := make(map[uint64]bool, t)
	out := make([]uint64, 0, t)
	var buf [8]byte
	for len(out) < t {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, err
		}
		v := (uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
			uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56) % n
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

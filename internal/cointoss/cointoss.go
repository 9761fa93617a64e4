package cointoss

import (
	"fmt"
	"io"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
)

/*
Commit-then-reveal coin toss. Two parties agree on unbiased joint
randomness: the sender commits to its seed vector, the receiver
then reveals its own seeds, the sender decommits and both xor the
vectors element-wise. Neither party can steer the outcome since
the sender is bound before seeing the receiver seeds and the
receiver moves before the sender opens.

The OT extension draws its random linear check challenge from this
exchange.
*/

var (
	ErrInvalidState  = fmt.Errorf("coin toss state has already been consumed")
	ErrCountMismatch = fmt.Errorf("seed, commitment and decommitment counts do not agree")
)

// sender states
const (
	senderInitialized = iota
	senderCommitted
	senderReceived
	senderDone
)

// receiver states
const (
	receiverInitialized = iota
	receiverRevealed
	receiverReceived
	receiverDone
)

// Sender is the committing party of the coin toss.
type Sender struct {
	state      int
	seeds      []block.Block
	decommits  []crypto.Decommitment
	theirSeeds []block.Block
}

// NewSender samples count seeds from r.
func NewSender(count int, r io.Reader) (*Sender, error) {
	seeds, err := block.NewSlice(r, count)
	if err != nil {
		return nil, err
	}
	return &Sender{state: senderInitialized, seeds: seeds}, nil
}

// Commit binds the sender seeds and returns the commitments to be
// sent to the receiver. Consumes the Initialized state.
func (s *Sender) Commit() ([]crypto.Commitment, error) {
	if s.state != senderInitialized {
		return nil, ErrInvalidState
	}
	s.state = senderCommitted

	commitments := make([]crypto.Commitment, len(s.seeds))
	s.decommits = make([]crypto.Decommitment, len(s.seeds))
	for i, seed := range s.seeds {
		c, d, err := crypto.Commit(seed.Bytes())
		if err != nil {
			return nil, err
		}
		commitments[i] = c
		s.decommits[i] = d
	}
	return commitments, nil
}

// Receive takes the receiver seed reveal and returns the sender
// decommitments. Consumes the Committed state.
func (s *Sender) Receive(seeds []block.Block) ([]crypto.Decommitment, error) {
	if s.state != senderCommitted {
		return nil, ErrInvalidState
	}
	if len(seeds) != len(s.seeds) {
		return nil, ErrCountMismatch
	}
	s.state = senderReceived
	s.theirSeeds = seeds

	return s.decommits, nil
}

// Finalize returns the joint randomness. Terminal.
func (s *Sender) Finalize() ([]block.Block, error) {
	if s.state != senderReceived {
		return nil, ErrInvalidState
	}
	s.state = senderDone

	out := make([]block.Block, len(s.seeds))
	copy(out, s.seeds)
	block.XorBlocks(out, s.theirSeeds)
	return out, nil
}

// Receiver is the revealing party of the coin toss.
type Receiver struct {
	state       int
	seeds       []block.Block
	commitments []crypto.Commitment
	senderSeeds []block.Block
}

// NewReceiver samples count seeds from r.
func NewReceiver(count int, r io.Reader) (*Receiver, error) {
	seeds, err := block.NewSlice(r, count)
	if err != nil {
		return nil, err
	}
	return &Receiver{state: receiverInitialized, seeds: seeds}, nil
}

// Reveal stores the sender commitments and returns the receiver
// seeds to be sent back. Consumes the Initialized state.
func (r *Receiver) Reveal(commitments []crypto.Commitment) ([]block.Block, error) {
	if r.state != receiverInitialized {
		return nil, ErrInvalidState
	}
	if len(commitments) != len(r.seeds) {
		return nil, ErrCountMismatch
	}
	r.state = receiverRevealed
	r.commitments = commitments

	out := make([]block.Block, len(r.seeds))
	copy(out, r.seeds)
	return out, nil
}

// Receive verifies the sender decommitments against the stored
// commitments. A decommitment that does not open, or a wrong
// count, aborts the toss.
func (r *Receiver) Receive(decommits []crypto.Decommitment) error {
	if r.state != receiverRevealed {
		return ErrInvalidState
	}
	if len(decommits) != len(r.seeds) {
		return ErrCountMismatch
	}
	r.state = receiverReceived

	r.senderSeeds = make([]block.Block, len(decommits))
	for i, d := range decommits {
		if err := r.commitments[i].Verify(d); err != nil {
			return fmt.Errorf("coin toss decommitment %d: %w", i, err)
		}
		if len(d.Value) != block.Size {
			return ErrCountMismatch
		}
		r.senderSeeds[i].SetBytes(d.Value)
	}
	return nil
}

// Finalize returns the joint randomness. Terminal.
func (r *Receiver) Finalize() ([]block.Block, error) {
	if r.state != receiverReceived {
		return nil, ErrInvalidState
	}
	r.state = receiverDone

	out := make([]block.Block, len(r.seeds))
	copy(out, r.seeds)
	block.XorBlocks(out, r.senderSeeds)
	return out, nil
}

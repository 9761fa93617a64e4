package ot

import (
	"crypto/rand"
	"fmt"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

// Receiver is the initialized receiving party.
type Receiver struct {
	config   ReceiverConfig
	group    crypto.Group
	consumed bool
}

// ReceiverReady holds the (possibly committed) choice bits, waiting
// for the sender public key.
type ReceiverReady struct {
	config   ReceiverConfig
	group    crypto.Group
	choices  []bool
	decommit crypto.Decommitment
	consumed bool
}

// ReceiverBlinded holds the per-slot blinding secrets, waiting for
// the sender ciphertexts.
type ReceiverBlinded struct {
	config   ReceiverConfig
	group    crypto.Group
	choices  []bool
	secrets  []crypto.Scalar
	pointA   crypto.Point
	decommit crypto.Decommitment
	consumed bool
}

// ReceiverComplete is the terminal receiver phase; it can still
// open the choice commitment when the sender asks for it.
type ReceiverComplete struct {
	config   ReceiverConfig
	choices  []bool
	decommit crypto.Decommitment
}

// NewReceiver creates a base OT receiver.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	group, err := crypto.NewGroup(config.RistrettoType)
	if err != nil {
		return nil, err
	}
	return &Receiver{config: config, group: group}, nil
}

// Setup fixes the choice bits and, when configured, commits to
// them. Consumes the Receiver.
func (r *Receiver) Setup(choices []bool) (*ReceiverSetup, *ReceiverReady, error) {
	if r.consumed {
		return nil, nil, ErrInvalidState
	}
	r.consumed = true

	ready := &ReceiverReady{
		config:  r.config,
		group:   r.group,
		choices: append([]bool(nil), choices...),
	}

	setup := &ReceiverSetup{}
	if r.config.ReceiverCommit {
		c, d, err := crypto.Commit(util.PackBools(choices))
		if err != nil {
			return nil, nil, err
		}
		setup.Commitment = &c
		ready.decommit = d
	}
	return setup, ready, nil
}

// SetupRandom is the random OT variant: the choice bits are drawn
// from the system randomness instead of being chosen by the caller,
// and surface only in the receiver output.
func (r *Receiver) SetupRandom(count int) (*ReceiverSetup, *ReceiverReady, error) {
	packed, err := util.SampleBitVector(rand.Reader, count)
	if err != nil {
		return nil, nil, err
	}
	return r.Setup(util.UnpackBools(packed, count))
}

// Blind derives one blinded point per choice bit from the sender
// public key. Consumes the ReceiverReady.
func (r *ReceiverReady) Blind(setup *SenderSetup) (*ReceiverPayload, *ReceiverBlinded, error) {
	if r.consumed {
		return nil, nil, ErrInvalidState
	}
	r.consumed = true

	pointA := r.group.NewPoint()
	if err := pointA.Unmarshal(setup.PublicKey); err != nil {
		return nil, nil, fmt.Errorf("sender public key: %w", err)
	}

	payload := &ReceiverPayload{BlindedChoices: make([][]byte, len(r.choices))}
	secrets := make([]crypto.Scalar, len(r.choices))
	for i, choice := range r.choices {
		b, err := r.group.NewScalar()
		if err != nil {
			return nil, nil, err
		}
		secrets[i] = b

		// B = bG for choice zero, B = A + bG for choice one
		pointB := r.group.ScalarBaseMult(b)
		if choice {
			pointB = pointA.Add(pointB)
		}
		payload.BlindedChoices[i] = pointB.Marshal()
	}

	return payload, &ReceiverBlinded{
		config:   r.config,
		group:    r.group,
		choices:  r.choices,
		secrets:  secrets,
		pointA:   pointA,
		decommit: r.decommit,
	}, nil
}

// Receive decrypts the chosen message of every pair. Consumes the
// ReceiverBlinded.
func (r *ReceiverBlinded) Receive(payload *SenderPayload) ([]block.Block, *ReceiverComplete, error) {
	if r.consumed {
		return nil, nil, ErrInvalidState
	}
	r.consumed = true

	if len(payload.Payload) != len(r.choices) {
		return nil, nil, ErrBaseCountMissMatch
	}

	out := make([]block.Block, len(r.choices))
	for i, choice := range r.choices {
		// k = bA regardless of the choice bit
		key := r.pointA.ScalarMult(r.secrets[i]).DeriveKey()

		bit := uint8(0)
		if choice {
			bit = 1
		}
		plaintext, err := crypto.Decrypt(r.config.CipherMode, key, bit, payload.Payload[i][bit])
		if err != nil {
			return nil, nil, fmt.Errorf("decrypting message %d: %w", i, err)
		}
		if len(plaintext) != block.Size {
			return nil, nil, ErrBaseCountMissMatch
		}
		out[i].SetBytes(plaintext)
	}

	return out, &ReceiverComplete{
		config:   r.config,
		choices:  r.choices,
		decommit: r.decommit,
	}, nil
}

// Choices returns the receiver choice bits; for the random variant
// this is where the protocol-chosen bits surface.
func (r *ReceiverComplete) Choices() []bool {
	return r.choices
}

// Reveal opens the choice commitment for the sender.
func (r *ReceiverComplete) Reveal() (*ReceiverReveal, error) {
	if !r.config.ReceiverCommit {
		return nil, ErrChoicesNotCommitted
	}
	return &ReceiverReveal{
		Decommitment: r.decommit,
		Choices:      util.PackBools(r.choices),
	}, nil
}

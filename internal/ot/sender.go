package ot

import (
	"bytes"
	"fmt"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

// Sender is the initialized sending party, before any message has
// been produced.
type Sender struct {
	config   SenderConfig
	group    crypto.Group
	consumed bool
}

// SenderReady holds the session secret after setup, waiting for
// the receiver blinded choices.
type SenderReady struct {
	config   SenderConfig
	group    crypto.Group
	secret   crypto.Scalar
	pointT   crypto.Point
	consumed bool
}

// SenderComplete is the terminal sender phase. When the receiver
// committed to its choices it can still verify the reveal.
type SenderComplete struct {
	commitment *crypto.Commitment
	count      int
}

// NewSender creates a base OT sender.
func NewSender(config SenderConfig) (*Sender, error) {
	group, err := crypto.NewGroup(config.RistrettoType)
	if err != nil {
		return nil, err
	}
	return &Sender{config: config, group: group}, nil
}

// Setup generates the session key pair and produces the public key
// message. Consumes the Sender.
func (s *Sender) Setup() (*SenderSetup, *SenderReady, error) {
	if s.consumed {
		return nil, nil, ErrInvalidState
	}
	s.consumed = true

	a, err := s.group.NewScalar()
	if err != nil {
		return nil, nil, err
	}
	pointA := s.group.ScalarBaseMult(a)

	// precompute T = aA, the blinding offset of a choice-one point
	pointT := pointA.ScalarMult(a)

	return &SenderSetup{PublicKey: pointA.Marshal()},
		&SenderReady{
			config: s.config,
			group:  s.group,
			secret: a,
			pointT: pointT,
		}, nil
}

// Send encrypts one message pair per slot against the receiver
// blinded choice points. setup carries the receiver choice
// commitment and may be nil unless the config demands it.
// Consumes the SenderReady.
func (s *SenderReady) Send(messages [][2]block.Block, setup *ReceiverSetup, payload *ReceiverPayload) (*SenderPayload, *SenderComplete, error) {
	if s.consumed {
		return nil, nil, ErrInvalidState
	}
	s.consumed = true

	if len(payload.BlindedChoices) != len(messages) {
		return nil, nil, ErrBaseCountMissMatch
	}

	var commitment *crypto.Commitment
	if s.config.ReceiverCommit {
		if setup == nil || setup.Commitment == nil {
			return nil, nil, ErrChoicesNotCommitted
		}
		commitment = setup.Commitment
	}

	out := &SenderPayload{Payload: make([][2][]byte, len(messages))}
	for i, encoded := range payload.BlindedChoices {
		pointB := s.group.NewPoint()
		if err := pointB.Unmarshal(encoded); err != nil {
			return nil, nil, fmt.Errorf("blinded choice %d: %w", i, err)
		}

		// k0 = aB, k1 = a(B - A) = aB - T
		k0 := pointB.ScalarMult(s.secret)
		k1 := k0.Sub(s.pointT)

		c0, err := crypto.Encrypt(s.config.CipherMode, k0.DeriveKey(), 0, messages[i][0].Bytes())
		if err != nil {
			return nil, nil, fmt.Errorf("encrypting message %d: %w", i, err)
		}
		c1, err := crypto.Encrypt(s.config.CipherMode, k1.DeriveKey(), 1, messages[i][1].Bytes())
		if err != nil {
			return nil, nil, fmt.Errorf("encrypting message %d: %w", i, err)
		}
		out.Payload[i] = [2][]byte{c0, c1}
	}

	return out, &SenderComplete{commitment: commitment, count: len(messages)}, nil
}

// VerifyChoices checks the receiver reveal against the commitment
// captured during Send. A mismatch is cryptographic evidence of a
// cheating receiver. Returns the verified choice bits.
func (s *SenderComplete) VerifyChoices(reveal *ReceiverReveal) ([]bool, error) {
	if s.commitment == nil {
		return nil, ErrChoicesNotCommitted
	}
	if err := s.commitment.Verify(reveal.Decommitment); err != nil {
		return nil, fmt.Errorf("choice reveal: %w", err)
	}
	if !bytes.Equal(reveal.Decommitment.Value, reveal.Choices) {
		return nil, ErrChoiceVerification
	}
	if len(reveal.Choices) != (s.count+7)/8 {
		return nil, ErrBaseCountMissMatch
	}
	return util.UnpackBools(reveal.Choices, s.count), nil
}

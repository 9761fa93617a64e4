package ot

import (
	"errors"

	"github.com/optable/silentot/internal/crypto"
)

/*
1 out of 2 base OT
from the paper: The Simplest Protocol for Oblivious Transfer
by Tung Chou and Claudio Orlandi in 2015
Reference: https://eprint.iacr.org/2015/267.pdf

Executed over the ristretto group once per session to bootstrap the
OT extension. Messages are fixed 128 bit blocks. Every protocol
phase is a value that is consumed by its transition; reusing a
consumed phase is a hard error, never silent reuse of secrets.
*/

var (
	ErrBaseCountMissMatch  = errors.New("provided slices is not the same length as the number of base OT")
	ErrInvalidState        = errors.New("base OT state has already been consumed")
	ErrChoicesNotCommitted = errors.New("receiver choices were not committed")
	ErrChoiceVerification  = errors.New("revealed choices do not match the commitment")
)

// SenderConfig configures the sending party.
type SenderConfig struct {
	// RistrettoType selects the group backend.
	RistrettoType int
	// CipherMode selects the payload masking cipher.
	CipherMode int
	// ReceiverCommit requires the receiver to commit to its
	// choice bits up front and reveal them once the transfer is
	// complete.
	ReceiverCommit bool
}

// ReceiverConfig configures the receiving party.
type ReceiverConfig struct {
	RistrettoType  int
	CipherMode     int
	ReceiverCommit bool
}

// DefaultSenderConfig uses the go-ristretto backend and the blake3
// xor cipher.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		RistrettoType: crypto.RistrettoTypeGR,
		CipherMode:    crypto.XORBlake3,
	}
}

// DefaultReceiverConfig mirrors DefaultSenderConfig.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		RistrettoType: crypto.RistrettoTypeGR,
		CipherMode:    crypto.XORBlake3,
	}
}

package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"fmt"

	"github.com/zeebo/blake3"
)

/*
Hash commitments for the coin toss and the receiver choice reveal.
Binding and hiding come from blake3 over a fresh random nonce.
*/

const (
	// CommitmentSize is the byte length of a commitment digest.
	CommitmentSize = 32
	// NonceSize is the byte length of a decommitment nonce.
	NonceSize = 16
)

var ErrCommitment = fmt.Errorf("decommitment does not open the commitment")

// Commitment is a blake3 digest binding a value.
type Commitment [CommitmentSize]byte

// Decommitment opens a Commitment.
type Decommitment struct {
	Nonce [NonceSize]byte
	Value []byte
}

// Commit binds value under a fresh random nonce.
func Commit(value []byte) (Commitment, Decommitment, error) {
	var d Decommitment
	if _, err := rand.Read(d.Nonce[:]); err != nil {
		return Commitment{}, Decommitment{}, err
	}
	d.Value = append([]byte(nil), value...)

	return commitWithNonce(d.Nonce, d.Value), d, nil
}

// Verify checks that d opens c, in constant time on the digest.
func (c Commitment) Verify(d Decommitment) error {
	expect := commitWithNonce(d.Nonce, d.Value)
	if !hmac.Equal(expect[:], c[:]) {
		return ErrCommitment
	}
	return nil
}

func commitWithNonce(nonce [NonceSize]byte, value []byte) Commitment {
	h := blake3.New()
	h.Write(nonce[:])
	h.Write(value)

	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

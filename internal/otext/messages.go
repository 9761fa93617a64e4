package otext

import (
	"io"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

// Extend carries the receiver correction vector: count requested
// rows and the packed per-column corrections, column major.
type Extend struct {
	Count uint32
	Us    []byte
}

// Check is the GF(2^128) correlation check triple: the compressed
// choice vector X and the two halves T0/T1 of the unreduced inner
// product of the receiver matrix with the chi challenge.
type Check struct {
	X  block.Block
	T0 block.Block
	T1 block.Block
}

// Derandomize carries the packed flip bits aligning random choice
// bits with application choices.
type Derandomize struct {
	Count uint32
	Flip  []byte
}

// SenderPayload carries XOR masked message pairs for one batch.
type SenderPayload struct {
	ID          uint32
	Ciphertexts [][2]block.Block
}

// SessionCommit binds the sender Delta at setup.
type SessionCommit struct {
	Commitment crypto.Commitment
}

// SessionReveal opens the Delta commitment.
type SessionReveal struct {
	Decommitment crypto.Decommitment
}

func (m *Extend) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, m.Count); err != nil {
		return err
	}
	return util.WriteLenPrefixed(w, m.Us)
}

func (m *Extend) Decode(r io.Reader) (err error) {
	if m.Count, err = util.ReadUint32(r); err != nil {
		return err
	}
	m.Us, err = util.ReadLenPrefixed(r)
	return err
}

func (m *Check) Encode(w io.Writer) error {
	var buf [3 * block.Size]byte
	m.X.PutBytes(buf[:block.Size])
	m.T0.PutBytes(buf[block.Size : 2*block.Size])
	m.T1.PutBytes(buf[2*block.Size:])
	_, err := w.Write(buf[:])
	return err
}

func (m *Check) Decode(r io.Reader) error {
	var buf [3 * block.Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	m.X.SetBytes(buf[:block.Size])
	m.T0.SetBytes(buf[block.Size : 2*block.Size])
	m.T1.SetBytes(buf[2*block.Size:])
	return nil
}

func (m *Derandomize) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, m.Count); err != nil {
		return err
	}
	return util.WriteLenPrefixed(w, m.Flip)
}

func (m *Derandomize) Decode(r io.Reader) (err error) {
	if m.Count, err = util.ReadUint32(r); err != nil {
		return err
	}
	m.Flip, err = util.ReadLenPrefixed(r)
	return err
}

func (m *SenderPayload) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, m.ID); err != nil {
		return err
	}
	if err := util.WriteUint32(w, uint32(len(m.Ciphertexts))); err != nil {
		return err
	}
	buf := make([]byte, 2*block.Size)
	for _, pair := range m.Ciphertexts {
		pair[0].PutBytes(buf[:block.Size])
		pair[1].PutBytes(buf[block.Size:])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func (m *SenderPayload) Decode(r io.Reader) (err error) {
	if m.ID, err = util.ReadUint32(r); err != nil {
		return err
	}
	count, err := util.ReadVectorLen(r, 2*block.Size)
	if err != nil {
		return err
	}
	m.Ciphertexts = make([][2]block.Block, count)
	buf := make([]byte, 2*block.Size)
	for i := range m.Ciphertexts {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		m.Ciphertexts[i][0].SetBytes(buf[:block.Size])
		m.Ciphertexts[i][1].SetBytes(buf[block.Size:])
	}
	return nil
}

func (m *SessionCommit) Encode(w io.Writer) error {
	_, err := w.Write(m.Commitment[:])
	return err
}

func (m *SessionCommit) Decode(r io.Reader) error {
	_, err := io.ReadFull(r, m.Commitment[:])
	return err
}

func (m *SessionReveal) Encode(w io.Writer) error {
	if _, err := w.Write(m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	return util.WriteLenPrefixed(w, m.Decommitment.Value)
}

func (m *SessionReveal) Decode(r io.Reader) (err error) {
	if _, err = io.ReadFull(r, m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	m.Decommitment.Value, err = util.ReadLenPrefixed(r)
	return err
}

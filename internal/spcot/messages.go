package spcot

import (
	"io"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

// MultiRequest carries the packed flip bits of every bin, bin by
// bin, level by level.
type MultiRequest struct {
	Flips []byte
}

// MultiResponse carries the masked key pairs of every bin level,
// the per bin corrected leaf sums and the batch checksum
// commitment.
type MultiResponse struct {
	Pairs      [][2]block.Block
	Sums       []block.Block
	Commitment crypto.Commitment
}

// CheckProof is the receiver's batch checksum.
type CheckProof struct {
	Z block.Block
}

// CheckOpen opens the sender's checksum commitment.
type CheckOpen struct {
	Decommitment crypto.Decommitment
}

func (m *MultiRequest) Encode(w io.Writer) error {
	return util.WriteLenPrefixed(w, m.Flips)
}

func (m *MultiRequest) Decode(r io.Reader) (err error) {
	m.Flips, err = util.ReadLenPrefixed(r)
	return err
}

func (m *MultiResponse) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, uint32(len(m.Pairs))); err != nil {
		return err
	}
	buf := make([]byte, 2*block.Size)
	for _, pair := range m.Pairs {
		pair[0].PutBytes(buf[:block.Size])
		pair[1].PutBytes(buf[block.Size:])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if err := util.WriteLenPrefixed(w, block.MarshalBlocks(m.Sums)); err != nil {
		return err
	}
	_, err := w.Write(m.Commitment[:])
	return err
}

func (m *MultiResponse) Decode(r io.Reader) error {
	count, err := util.ReadVectorLen(r, 2*block.Size)
	if err != nil {
		return err
	}
	m.Pairs = make([][2]block.Block, count)
	buf := make([]byte, 2*block.Size)
	for i := range m.Pairs {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		m.Pairs[i][0].SetBytes(buf[:block.Size])
		m.Pairs[i][1].SetBytes(buf[block.Size:])
	}
	raw, err := util.ReadLenPrefixed(r)
	if err != nil {
		return err
	}
	if m.Sums, err = block.UnmarshalBlocks(raw); err != nil {
		return err
	}
	_, err = io.ReadFull(r, m.Commitment[:])
	return err
}

func (m *CheckProof) Encode(w io.Writer) error {
	var buf [block.Size]byte
	m.Z.PutBytes(buf[:])
	_, err := w.Write(buf[:])
	return err
}

func (m *CheckProof) Decode(r io.Reader) error {
	var buf [block.Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	m.Z.SetBytes(buf[:])
	return nil
}

func (m *CheckOpen) Encode(w io.Writer) error {
	if _, err := w.Write(m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	return util.WriteLenPrefixed(w, m.Decommitment.Value)
}

func (m *CheckOpen) Decode(r io.Reader) (err error) {
	if _, err = io.ReadFull(r, m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	m.Decommitment.Value, err = util.ReadLenPrefixed(r)
	return err
}

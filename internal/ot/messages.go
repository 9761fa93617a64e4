package ot

import (
	"io"

	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

/*
Wire messages of the base OT. Fixed-width fields for points and
commitments, length-prefixed vectors for batches. The transport
delivering them in order belongs to the caller.
*/

// SenderSetup carries the sender session public key.
type SenderSetup struct {
	PublicKey []byte
}

// ReceiverSetup optionally carries the receiver choice commitment.
type ReceiverSetup struct {
	Commitment *crypto.Commitment
}

// ReceiverPayload carries one blinded choice point per OT slot.
type ReceiverPayload struct {
	BlindedChoices [][]byte
}

// SenderPayload carries one ciphertext pair per OT slot.
type SenderPayload struct {
	Payload [][2][]byte
}

// ReceiverReveal opens the receiver choice commitment after the
// transfer completed.
type ReceiverReveal struct {
	Decommitment crypto.Decommitment
	Choices      []byte
}

func (m *SenderSetup) Encode(w io.Writer) error {
	return util.WriteLenPrefixed(w, m.PublicKey)
}

func (m *SenderSetup) Decode(r io.Reader) (err error) {
	m.PublicKey, err = util.ReadLenPrefixed(r)
	return
}

func (m *ReceiverSetup) Encode(w io.Writer) error {
	if m.Commitment == nil {
		return util.WriteUint32(w, 0)
	}
	if err := util.WriteUint32(w, 1); err != nil {
		return err
	}
	_, err := w.Write(m.Commitment[:])
	return err
}

func (m *ReceiverSetup) Decode(r io.Reader) error {
	present, err := util.ReadUint32(r)
	if err != nil {
		return err
	}
	if present == 0 {
		m.Commitment = nil
		return nil
	}
	m.Commitment = new(crypto.Commitment)
	_, err = io.ReadFull(r, m.Commitment[:])
	return err
}

func (m *ReceiverPayload) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, uint32(len(m.BlindedChoices))); err != nil {
		return err
	}
	for _, p := range m.BlindedChoices {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *ReceiverPayload) Decode(r io.Reader) error {
	count, err := util.ReadVectorLen(r, crypto.PointLen)
	if err != nil {
		return err
	}
	m.BlindedChoices = make([][]byte, count)
	for i := range m.BlindedChoices {
		m.BlindedChoices[i] = make([]byte, crypto.PointLen)
		if _, err := io.ReadFull(r, m.BlindedChoices[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *SenderPayload) Encode(w io.Writer) error {
	if err := util.WriteUint32(w, uint32(len(m.Payload))); err != nil {
		return err
	}
	for _, pair := range m.Payload {
		if err := util.WriteLenPrefixed(w, pair[0]); err != nil {
			return err
		}
		if err := util.WriteLenPrefixed(w, pair[1]); err != nil {
			return err
		}
	}
	return nil
}

func (m *SenderPayload) Decode(r io.Reader) error {
	// Each pair occupies at least its two length prefixes on the wire.
	count, err := util.ReadVectorLen(r, 8)
	if err != nil {
		return err
	}
	m.Payload = make([][2][]byte, count)
	for i := range m.Payload {
		if m.Payload[i][0], err = util.ReadLenPrefixed(r); err != nil {
			return err
		}
		if m.Payload[i][1], err = util.ReadLenPrefixed(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *ReceiverReveal) Encode(w io.Writer) error {
	if _, err := w.Write(m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	if err := util.WriteLenPrefixed(w, m.Decommitment.Value); err != nil {
		return err
	}
	return util.WriteLenPrefixed(w, m.Choices)
}

func (m *ReceiverReveal) Decode(r io.Reader) (err error) {
	if _, err = io.ReadFull(r, m.Decommitment.Nonce[:]); err != nil {
		return err
	}
	if m.Decommitment.Value, err = util.ReadLenPrefixed(r); err != nil {
		return err
	}
	m.Choices, err = util.ReadLenPrefixed(r)
	return
}

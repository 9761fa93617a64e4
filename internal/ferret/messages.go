package ferret

import (
	"io"

	"github.com/optable/silentot/internal/block"
)

// LpnMatrixSeed carries the seed of the shared LPN encoding matrix.
type LpnMatrixSeed struct {
	Seed block.Block
}

// HashSeed carries the seed of the shared cuckoo hash functions.
type HashSeed struct {
	Seed block.Block
}

func encodeBlock(w io.Writer, b block.Block) error {
	var buf [block.Size]byte
	b.PutBytes(buf[:])
	_, err := w.Write(buf[:])
	return err
}

func decodeBlock(r io.Reader, b *block.Block) error {
	var buf [block.Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	b.SetBytes(buf[:])
	return nil
}

func (m *LpnMatrixSeed) Encode(w io.Writer) error {
	return encodeBlock(w, m.Seed)
}

func (m *LpnMatrixSeed) Decode(r io.Reader) error {
	return decodeBlock(r, &m.Seed)
}

func (m *HashSeed) Encode(w io.Writer) error {
	return encodeBlock(w, m.Seed)
}

func (m *HashSeed) Decode(r io.Reader) error {
	return decodeBlock(r, &m.Seed)
}

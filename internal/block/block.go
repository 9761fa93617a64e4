package block

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

/*
128 bit blocks, the unit of all correlated OT secrets.
Blocks form a group under XOR and a field under carry-less
multiplication reduced with the GCM polynomial.
*/

// Size is the byte length of an encoded block.
const Size = 16

var ErrBlockLengthMissMatch = fmt.Errorf("provided bytes are not %d bytes long", Size)

// Block is an immutable 128 bit value. Lo holds the low 64
// coefficients of the corresponding GF(2^128) polynomial and
// Hi the high 64.
type Block struct {
	Hi uint64
	Lo uint64
}

// New samples a uniform block from r.
func New(r io.Reader) (Block, error) {
	var buf [Size]byte
	var b Block
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return b, err
	}
	b.SetBytes(buf[:])
	return b, nil
}

// NewSlice samples count uniform blocks from r.
func NewSlice(r io.Reader, count int) ([]Block, error) {
	buf := make([]byte, count*Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return UnmarshalBlocks(buf)
}

// SetBytes decodes the 16 byte big endian encoding in p.
// p must be at least Size bytes long.
func (b *Block) SetBytes(p []byte) {
	b.Hi = binary.BigEndian.Uint64(p[0:8])
	b.Lo = binary.BigEndian.Uint64(p[8:16])
}

// PutBytes writes the 16 byte big endian encoding of b into dst.
// dst must be at least Size bytes long.
func (b Block) PutBytes(dst []byte) {
	binary.BigEndian.PutUint64(dst[0:8], b.Hi)
	binary.BigEndian.PutUint64(dst[8:16], b.Lo)
}

// Bytes returns a fresh 16 byte big endian encoding of b.
func (b Block) Bytes() []byte {
	dst := make([]byte, Size)
	b.PutBytes(dst)
	return dst
}

// Xor returns b XOR o.
func (b Block) Xor(o Block) Block {
	return Block{Hi: b.Hi ^ o.Hi, Lo: b.Lo ^ o.Lo}
}

// XorEq sets b to b XOR o in place.
func (b *Block) XorEq(o Block) {
	b.Hi ^= o.Hi
	b.Lo ^= o.Lo
}

// Equal tests if the blocks are equal.
func (b Block) Equal(o Block) bool {
	return b.Hi == o.Hi && b.Lo == o.Lo
}

// Bit returns coefficient i of the block polynomial, i in [0, 128).
func (b Block) Bit(i int) uint8 {
	if i < 64 {
		return uint8(b.Lo >> uint(i) & 1)
	}
	return uint8(b.Hi >> uint(i-64) & 1)
}

func (b Block) String() string {
	return hex.EncodeToString(b.Bytes())
}

// MarshalBlocks flattens bs into its wire encoding, Size bytes
// per block.
func MarshalBlocks(bs []Block) []byte {
	dst := make([]byte, len(bs)*Size)
	for i, b := range bs {
		b.PutBytes(dst[i*Size:])
	}
	return dst
}

// UnmarshalBlocks decodes a flat wire encoding produced by
// MarshalBlocks.
func UnmarshalBlocks(p []byte) ([]Block, error) {
	if len(p)%Size != 0 {
		return nil, ErrBlockLengthMissMatch
	}
	bs := make([]Block, len(p)/Size)
	for i := range bs {
		bs[i].SetBytes(p[i*Size:])
	}
	return bs, nil
}

// XorBlocks xors the blocks of a into dst in place. Panic if the
// slices do not have the same length.
func XorBlocks(dst, a []Block) {
	if len(dst) != len(a) {
		panic(ErrBlockLengthMissMatch)
	}
	for i := range dst {
		dst[i].XorEq(a[i])
	}
}

package util

import (
	"fmt"
	"io"
)

var ErrByteLengthMissMatch = fmt.Errorf("provided bytes do not have the same length for bit operations")

// XorBytes xors each byte from a with b and returns dst
// if a and b are the same length
func XorBytes(a, b []byte) (dst []byte, err error) {
	var n = len(b)
	if n != len(a) {
		return nil, ErrByteLengthMissMatch
	}

	dst = make([]byte, n)
	copy(dst, a)
	Xor(dst, b)

	return
}

// BitSetInByte returns 1 if bit i is set in the packed bit
// vector b, 0 otherwise.
func BitSetInByte(b []byte, i int) uint8 {
	return b[i/8] >> (i % 8) & 1
}

// SetBitInByte sets or clears bit i in the packed bit vector b.
func SetBitInByte(b []byte, i int, bit uint8) {
	if bit == 1 {
		b[i/8] |= 1 << (i % 8)
	} else {
		b[i/8] &^= 1 << (i % 8)
	}
}

// PackBools packs a bool slice into a bit vector, 8 choices
// per byte, LSB first.
func PackBools(bits []bool) []byte {
	dst := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			dst[i/8] |= 1 << (i % 8)
		}
	}
	return dst
}

// UnpackBools unpacks the first n bits of the packed bit vector
// b into a bool slice.
func UnpackBools(b []byte, n int) []bool {
	dst := make([]bool, n)
	for i := range dst {
		dst[i] = BitSetInByte(b, i) == 1
	}
	return dst
}

// PadTill8 returns the number of elements to add to have
// a multiple of 8.
func PadTill8(n int) int {
	if n%8 == 0 {
		return 0
	}
	return 8 - n%8
}

// SampleBitVector returns a packed vector of n pseudorandom bits
// read from prng, which is either crypto/rand.Reader or a seeded
// math/rand.Rand.
func SampleBitVector(prng io.Reader, n int) ([]byte, error) {
	dst := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(prng, dst); err != nil {
		return nil, err
	}
	// mask off the padding bits so that equality checks on the
	// packed form are meaningful
	if n%8 != 0 {
		dst[len(dst)-1] &= 1<<(n%8) - 1
	}
	return dst, nil
}

// TransposeBooleanMatrix transposes a rows x cols bit matrix held
// as rows packed byte slices into a cols x rows bit matrix in the
// same packed form. rows must be a multiple of 8.
func TransposeBooleanMatrix(in [][]byte) [][]byte {
	rows := len(in)
	if rows%8 != 0 {
		panic("rows of input matrix not a multiple of 8")
	}
	rowBytes := rows / 8
	colBytes := len(in[0])
	cols := colBytes * 8

	out := make([][]byte, cols)
	for i := range out {
		out[i] = make([]byte, rowBytes)
	}

	for rb := 0; rb < rowBytes; rb++ {
		for rbit := 0; rbit < 8; rbit++ {
			row := in[rb*8+rbit]
			for cb := 0; cb < colBytes; cb++ {
				v := row[cb]
				if v == 0 {
					continue
				}
				for cbit := 0; cbit < 8; cbit++ {
					out[cb*8+cbit][rb] |= v >> cbit & 1 << rbit
				}
			}
		}
	}
	return out
}

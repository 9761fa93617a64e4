package util

import (
	"encoding/binary"
	"fmt"
	"io"
)

/*
Length-prefixed framing for protocol messages. Fixed-width fields
are written raw; variable length vectors carry a uint32 big endian
length prefix.
*/

// maxFrameLen bounds a single length-prefixed vector so a corrupt
// or hostile peer cannot make us allocate unbounded memory.
const maxFrameLen = 1 << 28

var ErrFrameTooLarge = fmt.Errorf("length-prefixed frame exceeds %d bytes", maxFrameLen)

// WriteUint32 writes v big endian.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads a big endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadVectorLen reads a uint32 element count for a vector of
// fixed-size entries and bounds the implied byte size the same way
// ReadLenPrefixed bounds raw vectors, so a hostile count cannot
// drive an unbounded allocation before the body is read.
func ReadVectorLen(r io.Reader, entrySize int) (int, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(entrySize) > maxFrameLen {
		return 0, ErrFrameTooLarge
	}
	return int(n), nil
}

// WriteLenPrefixed writes p with a uint32 length prefix.
func WriteLenPrefixed(w io.Writer, p []byte) error {
	if err := WriteUint32(w, uint32(len(p))); err != nil {
		return err
	}
	_, err := w.Write(p)
	return err
}

// ReadLenPrefixed reads a vector written by WriteLenPrefixed.
func ReadLenPrefixed(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxFrameLen {
		return nil, ErrFrameTooLarge
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, err
	}
	return p, nil
}

package hash

import (
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/twmb/murmur3"
)

const (
	// SaltLength is the fixed byte length of hasher salts.
	SaltLength = 32

	Murmur3 = iota
	Highway
)

var (
	ErrUnknownHash        = fmt.Errorf("cannot create a hasher of unknown hash type")
	ErrSaltLengthMismatch = fmt.Errorf("provided salt is not %d length", SaltLength)
)

// Hasher implements different non cryptographic hashing functions
// keyed with a salt. The cuckoo allocation derives its candidate
// bins from these.
type Hasher interface {
	Hash64([]byte) uint64
}

// New creates a hasher of type t
func New(t int, salt []byte) (Hasher, error) {
	switch t {
	case Murmur3:
		return NewMurmur3Hasher(salt)
	case Highway:
		return NewHighwayHasher(salt)
	default:
		return nil, ErrUnknownHash
	}
}

// Murmur3 implementation of Hasher
type murmur64 struct {
	salt []byte
}

// NewMurmur3Hasher returns a Murmur3 hasher that uses salt as a prefix to the
// bytes being summed
func NewMurmur3Hasher(salt []byte) (Hasher, error) {
	if len(salt) != SaltLength {
		return murmur64{}, ErrSaltLengthMismatch
	}

	return murmur64{salt: salt}, nil
}

func (t murmur64) Hash64(p []byte) uint64 {
	// prepend the salt in m and then Sum
	return murmur3.Sum64(append(t.salt, p...))
}

// HighwayHash implementation of Hasher
type hw struct {
	salt []byte
}

// NewHighwayHasher returns a hasher that keys highwayhash
// with the 32 byte salt directly
func NewHighwayHasher(salt []byte) (Hasher, error) {
	if len(salt) != SaltLength {
		return hw{}, ErrSaltLengthMismatch
	}

	return hw{salt: salt}, nil
}

func (h hw) Hash64(p []byte) uint64 {
	return highwayhash.Sum64(p, h.salt)
}

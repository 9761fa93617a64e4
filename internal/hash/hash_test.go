package hash

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"testing"
)

var indexBytes = func() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1234567)
	return b[:]
}()

func makeSalt() ([]byte, error) {
	var s = make([]byte, SaltLength)

	if n, err := rand.Read(s); err != nil {
		return nil, err
	} else if n != SaltLength {
		return nil, fmt.Errorf("requested %d rand bytes and got %d", SaltLength, n)
	} else {
		return s, nil
	}
}

func TestNew(t *testing.T) {
	s, err := makeSalt()
	if err != nil {
		t.Fatal(err)
	}

	for _, typ := range []int{Murmur3, Highway} {
		h, err := New(typ, s)
		if err != nil {
			t.Fatal(err)
		}

		// deterministic for the same salt and input
		if h.Hash64(indexBytes) != h.Hash64(indexBytes) {
			t.Fatalf("hasher %d is not deterministic", typ)
		}
	}

	if _, err := New(42, s); err != ErrUnknownHash {
		t.Fatalf("expected ErrUnknownHash, got %v", err)
	}

	if _, err := New(Murmur3, s[:SaltLength-1]); err != ErrSaltLengthMismatch {
		t.Fatalf("expected ErrSaltLengthMismatch, got %v", err)
	}
}

func TestSaltChangesDigest(t *testing.T) {
	s1, _ := makeSalt()
	s2, _ := makeSalt()

	h1, _ := NewMurmur3Hasher(s1)
	h2, _ := NewMurmur3Hasher(s2)
	if h1.Hash64(indexBytes) == h2.Hash64(indexBytes) {
		t.Fatal("murmur3 digests collide across salts")
	}

	g1, _ := NewHighwayHasher(s1)
	g2, _ := NewHighwayHasher(s2)
	if g1.Hash64(indexBytes) == g2.Hash64(indexBytes) {
		t.Fatal("highwayhash digests collide across salts")
	}
}

func BenchmarkMurmur3(b *testing.B) {
	s, _ := makeSalt()
	h, _ := NewMurmur3Hasher(s)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash64(indexBytes)
	}
}

func BenchmarkHighway(b *testing.B) {
	s, _ := makeSalt()
	h, _ := NewHighwayHasher(s)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Hash64(indexBytes)
	}
}

package cointoss

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/optable/silentot/internal/crypto"
)

const seedCount = 4

func TestCoinToss(t *testing.T) {
	s, err := NewSender(seedCount, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReceiver(seedCount, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	commitments, err := s.Commit()
	if err != nil {
		t.Fatal(err)
	}

	seeds, err := r.Reveal(commitments)
	if err != nil {
		t.Fatal(err)
	}

	decommits, err := s.Receive(seeds)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Receive(decommits); err != nil {
		t.Fatal(err)
	}

	sOut, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	rOut, err := r.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	if len(sOut) != seedCount {
		t.Fatalf("got %d joint seeds, want %d", len(sOut), seedCount)
	}
	for i := range sOut {
		if !sOut[i].Equal(rOut[i]) {
			t.Fatalf("joint seed %d disagrees between the parties", i)
		}
	}
}

func TestCoinTossStateConsumed(t *testing.T) {
	s, _ := NewSender(seedCount, rand.Reader)
	if _, err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Commit(); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState on reused state, got %v", err)
	}

	r, _ := NewReceiver(seedCount, rand.Reader)
	if err := r.Receive(nil); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState before reveal, got %v", err)
	}
	if _, err := r.Finalize(); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState before receive, got %v", err)
	}
}

func TestCoinTossCountMismatch(t *testing.T) {
	s, _ := NewSender(seedCount, rand.Reader)
	r, _ := NewReceiver(seedCount+1, rand.Reader)

	commitments, _ := s.Commit()
	if _, err := r.Reveal(commitments); err != ErrCountMismatch {
		t.Fatalf("expected ErrCountMismatch, got %v", err)
	}
}

func TestCoinTossBadDecommit(t *testing.T) {
	s, _ := NewSender(seedCount, rand.Reader)
	r, _ := NewReceiver(seedCount, rand.Reader)

	commitments, _ := s.Commit()
	seeds, _ := r.Reveal(commitments)
	decommits, _ := s.Receive(seeds)

	// a cheating sender alters a revealed seed after committing
	decommits[2].Value = append([]byte(nil), decommits[2].Value...)
	decommits[2].Value[0] ^= 1

	err := r.Receive(decommits)
	if !errors.Is(err, crypto.ErrCommitment) {
		t.Fatalf("expected commitment error, got %v", err)
	}
}

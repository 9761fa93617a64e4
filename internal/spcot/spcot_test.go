package spcot

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/ggm"
	"github.com/optable/silentot/internal/util"
)

// idealCOTs is an in-memory stand-in for the bootstrap correlated
// OT layer. It hands both sides of every instance to the test,
// which a production path must never do.
func idealCOTs(t *testing.T, count int, delta block.Block) (sender []block.Block, receiver []block.Block, bits []bool) {
	t.Helper()

	var err error
	if sender, err = block.NewSlice(rand.Reader, count); err != nil {
		t.Fatal(err)
	}
	receiver = make([]block.Block, count)
	bits = make([]bool, count)
	buf := make([]byte, count)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	for i := range bits {
		bits[i] = buf[i]&1 == 1
		receiver[i] = sender[i]
		if bits[i] {
			receiver[i] = receiver[i].Xor(delta)
		}
	}
	return sender, receiver, bits
}

func TestSinglePoint(t *testing.T) {
	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	for depth := 1; depth <= 6; depth++ {
		alpha := make([]bool, depth)
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			t.Fatal(err)
		}
		for h := range alpha {
			alpha[h] = buf[h]&1 == 1
		}

		senderCots, receiverCots, bits := idealCOTs(t, depth, delta)

		req, err := RequestPoint(alpha, bits)
		if err != nil {
			t.Fatal(err)
		}
		resp, v, err := RespondPoint(delta, depth, senderCots, req, 0)
		if err != nil {
			t.Fatal(err)
		}
		w, err := RecoverPoint(alpha, receiverCots, resp, 0)
		if err != nil {
			t.Fatal(err)
		}

		hidden := ggm.Index(alpha)
		for i := range v {
			want := v[i]
			if i == hidden {
				want = want.Xor(delta)
			}
			if !w[i].Equal(want) {
				t.Fatalf("depth %d slot %d: single point correlation broken", depth, i)
			}
		}
	}
}

func runMultiPoint(t *testing.T, n, tt uint64, indices []uint64) (s, r []block.Block, delta block.Block) {
	t.Helper()

	var err error
	if delta, err = block.New(rand.Reader); err != nil {
		t.Fatal(err)
	}
	hashSeed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	sender, err := NewMultiSender(n, tt, hashSeed, delta)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewMultiReceiver(n, tt, hashSeed)
	if err != nil {
		t.Fatal(err)
	}
	if sender.CotCount() != receiver.CotCount() {
		t.Fatalf("cot counts disagree: %d vs %d", sender.CotCount(), receiver.CotCount())
	}

	senderCots, receiverCots, bits := idealCOTs(t, sender.CotCount(), delta)

	req, err := receiver.Request(indices, bits)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := sender.Respond(req, senderCots)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	// exercise the wire format on the way through
	var buf bytes.Buffer
	if err := resp.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	var decoded MultiResponse
	if err := decoded.Decode(&buf); err != nil {
		t.Fatal(err)
	}

	proof, err := receiver.Recover(&decoded, receiverCots)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	open, err := sender.Check(proof)
	if err != nil {
		t.Fatalf("sender check: %v", err)
	}
	if err := receiver.VerifyOpen(open); err != nil {
		t.Fatalf("receiver verify: %v", err)
	}

	if s, err = sender.Vector(); err != nil {
		t.Fatal(err)
	}
	if r, err = receiver.Vector(); err != nil {
		t.Fatal(err)
	}
	return s, r, delta
}

func TestMultiPointSmallDomain(t *testing.T) {
	indices := []uint64{1, 3, 4, 6}
	s, r, delta := runMultiPoint(t, 20, 4, indices)

	special := map[uint64]bool{1: true, 3: true, 4: true, 6: true}
	for i := uint64(0); i < 20; i++ {
		want := s[i]
		if special[i] {
			want = want.Xor(delta)
		}
		if !r[i].Equal(want) {
			t.Fatalf("position %d: multi point correlation broken", i)
		}
	}
}

func TestMultiPointLargerDomain(t *testing.T) {
	const n, tt = 1000, 20
	seen := make(map[uint64]bool)
	indices := make([]uint64, 0, tt)
	var buf [8]byte
	for len(indices) < tt {
		if _, err := rand.Read(buf[:]); err != nil {
			t.Fatal(err)
		}
		v := (uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24) % n
		if !seen[v] {
			seen[v] = true
			indices = append(indices, v)
		}
	}

	s, r, delta := runMultiPoint(t, n, tt, indices)
	for i := uint64(0); i < n; i++ {
		want := s[i]
		if seen[i] {
			want = want.Xor(delta)
		}
		if !r[i].Equal(want) {
			t.Fatalf("position %d: multi point correlation broken", i)
		}
	}
}

func TestMultiPointFaultInjection(t *testing.T) {
	const n, tt = 64, 4
	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hashSeed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	sender, err := NewMultiSender(n, tt, hashSeed, delta)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewMultiReceiver(n, tt, hashSeed)
	if err != nil {
		t.Fatal(err)
	}

	senderCots, receiverCots, bits := idealCOTs(t, sender.CotCount(), delta)
	req, err := receiver.Request([]uint64{2, 9, 17, 33}, bits)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := sender.Respond(req, senderCots)
	if err != nil {
		t.Fatal(err)
	}

	// a tampered leaf sum shifts the receiver's recovered hidden
	// slot and must surface in the batch checksum
	resp.Sums[0].Lo ^= 1
	proof, err := receiver.Recover(resp, receiverCots)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sender.Check(proof); !errors.Is(err, ErrConsistencyCheck) {
		t.Fatalf("got %v, want ErrConsistencyCheck", err)
	}
}

func TestOpenTampered(t *testing.T) {
	const n, tt = 64, 4
	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hashSeed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	sender, err := NewMultiSender(n, tt, hashSeed, delta)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewMultiReceiver(n, tt, hashSeed)
	if err != nil {
		t.Fatal(err)
	}

	senderCots, receiverCots, bits := idealCOTs(t, sender.CotCount(), delta)
	req, err := receiver.Request([]uint64{5, 6, 7, 8}, bits)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := sender.Respond(req, senderCots)
	if err != nil {
		t.Fatal(err)
	}
	proof, err := receiver.Recover(resp, receiverCots)
	if err != nil {
		t.Fatal(err)
	}
	open, err := sender.Check(proof)
	if err != nil {
		t.Fatal(err)
	}

	open.Decommitment.Value[0] ^= 1
	if err := receiver.VerifyOpen(open); err == nil {
		t.Fatal("tampered open verified")
	}
}

func TestInputValidation(t *testing.T) {
	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	seed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewMultiSender(4, 8, seed, delta); !errors.Is(err, ErrQueryCount) {
		t.Fatalf("t>n: got %v", err)
	}
	if _, err := NewMultiReceiver(4, 0, seed); !errors.Is(err, ErrQueryCount) {
		t.Fatalf("t=0: got %v", err)
	}

	receiver, err := NewMultiReceiver(32, 4, seed)
	if err != nil {
		t.Fatal(err)
	}
	bits := make([]bool, receiver.CotCount())
	if _, err := receiver.Request([]uint64{1, 2, 3}, bits); !errors.Is(err, ErrQueryCount) {
		t.Fatalf("short indices: got %v", err)
	}
	if _, err := receiver.Request([]uint64{1, 2, 3, 99}, bits); !errors.Is(err, ErrQueryCount) {
		t.Fatalf("out of range index: got %v", err)
	}
	if _, err := receiver.Request([]uint64{1, 2, 3, 3}, bits); !errors.Is(err, ErrQueryCount) {
		t.Fatalf("duplicate index: got %v", err)
	}
	if _, err := receiver.Request([]uint64{1, 2, 3, 4}, bits[:1]); !errors.Is(err, ErrCotCount) {
		t.Fatalf("short cot bits: got %v", err)
	}
}

func TestResponseDecodeHostileCount(t *testing.T) {
	var buf bytes.Buffer
	if err := util.WriteUint32(&buf, ^uint32(0)); err != nil {
		t.Fatal(err)
	}
	var resp MultiResponse
	if err := resp.Decode(&buf); !errors.Is(err, util.ErrFrameTooLarge) {
		t.Fatalf("oversize pair count: got %v, want ErrFrameTooLarge", err)
	}
}

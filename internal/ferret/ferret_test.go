package ferret

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/lpn"
)

// small LPN instance keeping the test rounds fast; the preset
// instances only differ in scale
var testParams = lpn.Params{N: 2048, K: 256, T: 8}

// idealPool is an in-memory stand-in for a correlated OT source,
// handing matching sender and receiver sides to the test.
type idealPool struct {
	delta block.Block
}

func (p *idealPool) draw(t *testing.T, count int) (v []block.Block, w []block.Block, u []bool) {
	t.Helper()
	var err error
	if v, err = block.NewSlice(rand.Reader, count); err != nil {
		t.Fatal(err)
	}
	w = make([]block.Block, count)
	u = make([]bool, count)
	buf := make([]byte, count)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	for i := range u {
		u[i] = buf[i]&1 == 1
		w[i] = v[i]
		if u[i] {
			w[i] = w[i].Xor(p.delta)
		}
	}
	return v, w, u
}

func newPair(t *testing.T) (*Sender, *Receiver, *idealPool) {
	t.Helper()

	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	matrixSeed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hashSeed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	pool := &idealPool{delta: delta}
	v, w, u := pool.draw(t, testParams.K)

	sender, err := NewSender(delta, v, testParams, matrixSeed, hashSeed)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewReceiver(w, u, testParams, matrixSeed, hashSeed)
	if err != nil {
		t.Fatal(err)
	}
	if sender.MpcotCotCount() != receiver.MpcotCotCount() {
		t.Fatalf("cot budgets disagree: %d vs %d", sender.MpcotCotCount(), receiver.MpcotCotCount())
	}
	return sender, receiver, pool
}

func runExtend(t *testing.T, sender *Sender, receiver *Receiver, pool *idealPool) ([]block.Block, []block.Block, []bool) {
	t.Helper()

	cotV, cotW, cotU := pool.draw(t, sender.MpcotCotCount())

	req, err := receiver.Request(cotU)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := sender.Respond(req, cotV)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	proof, err := receiver.Recover(resp, cotW)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	open, out, err := sender.Finish(proof)
	if err != nil {
		t.Fatalf("sender finish: %v", err)
	}
	outW, outU, err := receiver.Finish(open)
	if err != nil {
		t.Fatalf("receiver finish: %v", err)
	}
	return out, outW, outU
}

func TestExtendCorrelation(t *testing.T) {
	sender, receiver, pool := newPair(t)

	out, outW, outU := runExtend(t, sender, receiver, pool)
	if len(out) != testParams.N-testParams.K {
		t.Fatalf("emitted %d instances, want %d", len(out), testParams.N-testParams.K)
	}
	if len(outW) != len(out) || len(outU) != len(out) {
		t.Fatalf("receiver output lengths disagree: %d/%d vs %d", len(outW), len(outU), len(out))
	}

	delta := sender.Delta()
	for i := range out {
		want := out[i]
		if outU[i] {
			want = want.Xor(delta)
		}
		if !outW[i].Equal(want) {
			t.Fatalf("instance %d: correlation broken", i)
		}
	}
}

func TestRepeatedExtends(t *testing.T) {
	sender, receiver, pool := newPair(t)
	delta := sender.Delta()

	for round := 0; round < 3; round++ {
		out, outW, outU := runExtend(t, sender, receiver, pool)
		for i := range out {
			want := out[i]
			if outU[i] {
				want = want.Xor(delta)
			}
			if !outW[i].Equal(want) {
				t.Fatalf("round %d instance %d: correlation broken", round, i)
			}
		}
	}
}

func TestSeedLengthValidation(t *testing.T) {
	delta, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	seed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	short := make([]block.Block, testParams.K-1)
	if _, err := NewSender(delta, short, testParams, seed, seed); !errors.Is(err, ErrSeedLength) {
		t.Fatalf("got %v, want ErrSeedLength", err)
	}
	w := make([]block.Block, testParams.K)
	u := make([]bool, testParams.K-1)
	if _, err := NewReceiver(w, u, testParams, seed, seed); !errors.Is(err, ErrSeedLength) {
		t.Fatalf("got %v, want ErrSeedLength", err)
	}
}

func TestRoundState(t *testing.T) {
	sender, receiver, pool := newPair(t)

	if _, _, err := sender.Finish(nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("finish before respond: got %v", err)
	}
	if _, _, err := receiver.Finish(nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("receiver finish before request: got %v", err)
	}

	cotV, _, cotU := pool.draw(t, sender.MpcotCotCount())
	req, err := receiver.Request(cotU)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := receiver.Request(cotU); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double request: got %v", err)
	}
	if _, err := sender.Respond(req, cotV); err != nil {
		t.Fatal(err)
	}
	if _, err := sender.Respond(req, cotV); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double respond: got %v", err)
	}
}

package lpn

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/optable/silentot/internal/block"
)

// testParams keeps the matrix small enough for the determinism
// comparisons to stay fast.
var testParams = Params{N: 4096, K: 512, T: 16}

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	seed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEncoder(testParams, seed)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestComputeMatchesNaive(t *testing.T) {
	e := newTestEncoder(t)

	x, err := block.NewSlice(rand.Reader, testParams.K)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := block.NewSlice(rand.Reader, testParams.N)
	if err != nil {
		t.Fatal(err)
	}
	serial := append([]block.Block(nil), parallel...)

	if err := e.Compute(x, parallel); err != nil {
		t.Fatal(err)
	}
	if err := e.ComputeNaive(x, serial); err != nil {
		t.Fatal(err)
	}
	for i := range parallel {
		if !parallel[i].Equal(serial[i]) {
			t.Fatalf("row %d: parallel and serial outputs differ", i)
		}
	}
}

func TestSharedSeedAgreement(t *testing.T) {
	seed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewEncoder(testParams, seed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEncoder(testParams, seed)
	if err != nil {
		t.Fatal(err)
	}

	x, err := block.NewSlice(rand.Reader, testParams.K)
	if err != nil {
		t.Fatal(err)
	}
	ya := make([]block.Block, testParams.N)
	yb := make([]block.Block, testParams.N)
	if err := a.Compute(x, ya); err != nil {
		t.Fatal(err)
	}
	if err := b.ComputeNaive(x, yb); err != nil {
		t.Fatal(err)
	}
	for i := range ya {
		if !ya[i].Equal(yb[i]) {
			t.Fatalf("row %d: encoders with the same seed disagree", i)
		}
	}
}

func TestComputeBoolsConsistency(t *testing.T) {
	e := newTestEncoder(t)

	// encode unit vectors as both bits and blocks; the bool variant
	// must select the exact same columns
	xBits := make([]bool, testParams.K)
	xBlocks := make([]block.Block, testParams.K)
	for i := 0; i < testParams.K; i += 7 {
		xBits[i] = true
		xBlocks[i] = block.Block{Lo: 1}
	}

	yBits := make([]bool, testParams.N)
	yBlocks := make([]block.Block, testParams.N)
	if err := e.ComputeBools(xBits, yBits); err != nil {
		t.Fatal(err)
	}
	if err := e.Compute(xBlocks, yBlocks); err != nil {
		t.Fatal(err)
	}
	for i := range yBits {
		want := yBlocks[i].Lo&1 == 1
		if yBits[i] != want {
			t.Fatalf("row %d: bool and block encodings disagree", i)
		}
	}
}

func TestLinearity(t *testing.T) {
	e := newTestEncoder(t)

	a, err := block.NewSlice(rand.Reader, testParams.K)
	if err != nil {
		t.Fatal(err)
	}
	b, err := block.NewSlice(rand.Reader, testParams.K)
	if err != nil {
		t.Fatal(err)
	}
	sum := make([]block.Block, testParams.K)
	for i := range sum {
		sum[i] = a[i].Xor(b[i])
	}

	ya := make([]block.Block, testParams.N)
	yb := make([]block.Block, testParams.N)
	ys := make([]block.Block, testParams.N)
	if err := e.ComputeNaive(a, ya); err != nil {
		t.Fatal(err)
	}
	if err := e.ComputeNaive(b, yb); err != nil {
		t.Fatal(err)
	}
	if err := e.ComputeNaive(sum, ys); err != nil {
		t.Fatal(err)
	}
	for i := range ys {
		if !ys[i].Equal(ya[i].Xor(yb[i])) {
			t.Fatalf("row %d: encoding is not linear", i)
		}
	}
}

func TestValidation(t *testing.T) {
	seed, err := block.New(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewEncoder(Params{N: 10, K: 10, T: 1}, seed); !errors.Is(err, ErrParams) {
		t.Fatalf("got %v, want ErrParams", err)
	}
	if _, err := NewEncoder(Params{N: 10, K: 0, T: 1}, seed); !errors.Is(err, ErrParams) {
		t.Fatalf("got %v, want ErrParams", err)
	}

	e := newTestEncoder(t)
	x := make([]block.Block, testParams.K-1)
	y := make([]block.Block, testParams.N)
	if err := e.Compute(x, y); !errors.Is(err, ErrInputLength) {
		t.Fatalf("got %v, want ErrInputLength", err)
	}
	x = make([]block.Block, testParams.K)
	y = make([]block.Block, testParams.N+1)
	if err := e.ComputeNaive(x, y); !errors.Is(err, ErrInputLength) {
		t.Fatalf("got %v, want ErrInputLength", err)
	}
}

func TestPresets(t *testing.T) {
	for _, p := range []Params{Small, Medium, Large} {
		if p.N <= p.K {
			t.Fatalf("preset %+v: n must exceed k", p)
		}
		seed, err := block.New(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := NewEncoder(p, seed); err != nil {
			t.Fatalf("preset %+v rejected: %v", p, err)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	seed, _ := block.New(rand.Reader)
	e, err := NewEncoder(Small, seed)
	if err != nil {
		b.Fatal(err)
	}
	x, _ := block.NewSlice(rand.Reader, Small.K)
	y := make([]block.Block, Small.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Compute(x, y); err != nil {
			b.Fatal(err)
		}
	}
}

package lpn

/*
Structured LPN encoder: the linear compression step turning a short
correlated OT seed into a long pseudorandom batch.

The encoding matrix A is n x k, sparse with a fixed row weight, and
regenerated identically by both parties from a shared seed: the
column indices of row i come from AES evaluations of (i, j) under
the seed, so any row can be derived independently of the others and
the matrix never materializes.
*/

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/optable/silentot/internal/block"
)

// rowWeight is the number of nonzero entries per matrix row. It is
// a security parameter of the LPN instance, not a tuning knob.
const rowWeight = 10

var (
	ErrParams      = errors.New("LPN output length must exceed the seed length")
	ErrInputLength = errors.New("vector length does not match the LPN parameters")
)

// Params is one LPN instance: n output rows, k seed columns, t
// noise positions in the corrective vector.
type Params struct {
	N int
	K int
	T int
}

// The preset instances. Larger presets amortize the multi point OT
// cost over more output per extend call.
var (
	Small  = Params{N: 178944, K: 17384, T: 699}
	Medium = Params{N: 470016, K: 32768, T: 918}
	Large  = Params{N: 10180608, K: 124000, T: 4971}
)

// Encoder applies the seed derived matrix of one LPN instance.
type Encoder struct {
	params Params
	aes    cipher.Block
}

// NewEncoder validates params and keys the index derivation with
// seed.
func NewEncoder(params Params, seed block.Block) (*Encoder, error) {
	if params.N <= params.K || params.K <= 0 {
		return nil, fmt.Errorf("n=%d k=%d: %w", params.N, params.K, ErrParams)
	}

	var key [block.Size]byte
	seed.PutBytes(key[:])
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return &Encoder{params: params, aes: c}, nil
}

// Params returns the encoder's LPN instance.
func (e *Encoder) Params() Params {
	return e.params
}

// rowIndices fills idxs with the k-range column indices of row i.
func (e *Encoder) rowIndices(i int, idxs *[rowWeight]int) {
	var in, out [block.Size]byte
	binary.BigEndian.PutUint64(in[:8], uint64(i))
	for j := 0; j < rowWeight; j++ {
		binary.BigEndian.PutUint64(in[8:], uint64(j))
		e.aes.Encrypt(out[:], in[:])
		idxs[j] = int(binary.BigEndian.Uint64(out[:8]) % uint64(e.params.K))
	}
}

// Compute XORs A·x into y row by row, sharded across goroutines.
// Rows are independent, so the output is bit identical to
// ComputeNaive.
func (e *Encoder) Compute(x, y []block.Block) error {
	if len(x) != e.params.K {
		return fmt.Errorf("seed length %d, want %d: %w", len(x), e.params.K, ErrInputLength)
	}
	if len(y) != e.params.N {
		return fmt.Errorf("output length %d, want %d: %w", len(y), e.params.N, ErrInputLength)
	}

	workers := runtime.NumCPU()
	chunk := (e.params.N + workers - 1) / workers
	g := new(errgroup.Group)
	for from := 0; from < e.params.N; from += chunk {
		from := from
		to := from + chunk
		if to > e.params.N {
			to = e.params.N
		}
		g.Go(func() error {
			var idxs [rowWeight]int
			for i := from; i < to; i++ {
				e.rowIndices(i, &idxs)
				for _, idx := range idxs {
					y[i].XorEq(x[idx])
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// ComputeNaive is the serial reference of Compute.
func (e *Encoder) ComputeNaive(x, y []block.Block) error {
	if len(x) != e.params.K {
		return fmt.Errorf("seed length %d, want %d: %w", len(x), e.params.K, ErrInputLength)
	}
	if len(y) != e.params.N {
		return fmt.Errorf("output length %d, want %d: %w", len(y), e.params.N, ErrInputLength)
	}

	var idxs [rowWeight]int
	for i := 0; i < e.params.N; i++ {
		e.rowIndices(i, &idxs)
		for _, idx := range idxs {
			y[i].XorEq(x[idx])
		}
	}
	return nil
}

// ComputeBools XORs A·x into y over single bits, with the exact
// same matrix as the block variants. The receiver amplifies its
// choice bits through it.
func (e *Encoder) ComputeBools(x, y []bool) error {
	if len(x) != e.params.K {
		return fmt.Errorf("seed length %d, want %d: %w", len(x), e.params.K, ErrInputLength)
	}
	if len(y) != e.params.N {
		return fmt.Errorf("output length %d, want %d: %w", len(y), e.params.N, ErrInputLength)
	}

	workers := runtime.NumCPU()
	chunk := (e.params.N + workers - 1) / workers
	g := new(errgroup.Group)
	for from := 0; from < e.params.N; from += chunk {
		from := from
		to := from + chunk
		if to > e.params.N {
			to = e.params.N
		}
		g.Go(func() error {
			var idxs [rowWeight]int
			for i := from; i < to; i++ {
				e.rowIndices(i, &idxs)
				for _, idx := range idxs {
					y[i] = y[i] != x[idx]
				}
			}
			return nil
		})
	}
	return g.Wait()
}

package otext

import (
	"crypto/rand"
	"fmt"
	"runtime"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

// Receiver is the extension receiver. After Extend and Check it
// holds one block and one choice bit per row.
type Receiver struct {
	config     ReceiverConfig
	pairs      [][2]block.Block
	phase      int
	count      int
	rows       []block.Block
	choiceBits []byte
	choices    []bool
	cursor     int
	pending    []bool
	extendRows int
}

// NewReceiver builds an extension receiver from the 128 seed pairs
// it offered as the base OT sender.
func NewReceiver(pairs [][2]block.Block, config ReceiverConfig) (*Receiver, error) {
	if len(pairs) != BaseCount {
		return nil, ErrBaseCountMissMatch
	}
	return &Receiver{
		config: config,
		pairs:  append([][2]block.Block(nil), pairs...),
	}, nil
}

// Extend expands the seed pair columns to count rows plus check
// padding and folds the choice bits into the correction vector. A
// nil choices slice samples uniform bits, the random OT variant;
// otherwise len(choices) must equal count. The padding bits are
// always uniform.
func (r *Receiver) Extend(count int, choices []bool) (*Extend, error) {
	if r.phase != phaseSetup {
		return nil, ErrInvalidState
	}
	if choices != nil && len(choices) != count {
		return nil, ErrCountMismatch
	}

	m := extendedRows(count)
	colBytes := m / 8

	packed, err := util.SampleBitVector(rand.Reader, m)
	if err != nil {
		return nil, err
	}
	if choices != nil {
		for i, c := range choices {
			bit := uint8(0)
			if c {
				bit = 1
			}
			util.SetBitInByte(packed, i, bit)
		}
	}

	ext := &Extend{Count: uint32(count), Us: make([]byte, BaseCount*colBytes)}
	cols := make([][]byte, BaseCount)
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < BaseCount; i++ {
		i := i
		g.Go(func() error {
			h := blake3.New()
			t0 := make([]byte, colBytes)
			if err := crypto.PseudorandomGenerate(t0, r.pairs[i][0].Bytes(), h); err != nil {
				return err
			}
			u := ext.Us[i*colBytes : (i+1)*colBytes]
			if err := crypto.PseudorandomGenerate(u, r.pairs[i][1].Bytes(), h); err != nil {
				return err
			}
			util.Xor(u, t0)
			util.Xor(u, packed)
			cols[i] = t0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("expanding columns: %w", err)
	}

	r.rows = rowsFromColumns(cols, m)
	r.choiceBits = packed
	r.choices = util.UnpackBools(packed, count)
	r.count = count
	r.extendRows = m
	r.phase = phaseExtended
	return ext, nil
}

// Check compresses the whole matrix into the check triple with the
// chi challenge derived from the coin toss seed.
func (r *Receiver) Check(chiSeed block.Block) (*Check, error) {
	if r.phase != phaseExtended {
		return nil, ErrInvalidState
	}

	chis := make([]block.Block, r.extendRows)
	block.PowerSeries(chiSeed, chis)

	var c Check
	c.T0, c.T1 = block.ClMulSum(r.rows, chis[:len(r.rows)])
	for j := range r.rows {
		if util.BitSetInByte(r.choiceBits, j) == 1 {
			c.X.XorEq(chis[j])
		}
	}

	r.rows = r.rows[:r.count]
	r.phase = phaseChecked
	return &c, nil
}

// Derandomize aligns the next len(choices) rows with application
// choice bits, returning the flip vector for the sender.
func (r *Receiver) Derandomize(choices []bool) (*Derandomize, error) {
	if r.phase != phaseChecked {
		return nil, ErrInvalidState
	}
	if r.pending != nil {
		return nil, ErrInvalidState
	}
	if len(choices) > r.count-r.cursor {
		return nil, ErrInsufficientSetup
	}

	flips := make([]bool, len(choices))
	for i := range choices {
		flips[i] = r.choices[r.cursor+i] != choices[i]
	}
	r.pending = append([]bool(nil), choices...)
	return &Derandomize{Count: uint32(len(choices)), Flip: util.PackBools(flips)}, nil
}

// Keys consumes the next n rows and returns one key and its choice
// bit per row. After a Derandomize the bits are the application
// choices; otherwise they are the protocol sampled ones.
func (r *Receiver) Keys(n int) ([]block.Block, []bool, error) {
	if r.phase != phaseChecked {
		return nil, nil, ErrInvalidState
	}
	if n > r.count-r.cursor {
		return nil, nil, ErrInsufficientSetup
	}
	if r.pending != nil && len(r.pending) != n {
		return nil, nil, ErrCountMismatch
	}

	keys := append([]block.Block(nil), r.rows[r.cursor:r.cursor+n]...)
	crypto.CrHashBlocks(keys, uint64(r.cursor))
	choices := make([]bool, n)
	for i := 0; i < n; i++ {
		if r.pending != nil {
			choices[i] = r.pending[i]
		} else {
			choices[i] = r.choices[r.cursor+i]
		}
	}
	r.cursor += n
	r.pending = nil
	return keys, choices, nil
}

// Correlated consumes the next n rows as raw correlated OT blocks
// together with their choice bits.
func (r *Receiver) Correlated(n int) ([]block.Block, []bool, error) {
	if r.phase != phaseChecked {
		return nil, nil, ErrInvalidState
	}
	if r.pending != nil {
		return nil, nil, ErrInvalidState
	}
	if n > r.count-r.cursor {
		return nil, nil, ErrInsufficientSetup
	}
	rows := append([]block.Block(nil), r.rows[r.cursor:r.cursor+n]...)
	choices := append([]bool(nil), r.choices[r.cursor:r.cursor+n]...)
	r.cursor += n
	return rows, choices, nil
}

// ReceivePayload decrypts the chosen message of every ciphertext
// pair, consuming the corresponding rows.
func (r *Receiver) ReceivePayload(p *SenderPayload) ([]block.Block, error) {
	keys, choices, err := r.Keys(len(p.Ciphertexts))
	if err != nil {
		return nil, err
	}
	out := make([]block.Block, len(keys))
	for i := range out {
		bit := 0
		if choices[i] {
			bit = 1
		}
		out[i] = p.Ciphertexts[i][bit].Xor(keys[i])
	}
	return out, nil
}

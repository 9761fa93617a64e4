package otext

/*
OT extension following the protocol of Keller, Orsini and Scholl,
"Actively Secure OT Extension with Optimal Overhead" (2015).

A fixed number of base OTs on 128 bit PRG seeds is stretched into an
arbitrarily large batch of correlated OTs using only symmetric key
operations. The extension sender plays the base OT receiver with the
bits of its session secret Delta as choices; the extension receiver
plays the base OT sender with fresh seed pairs. Both sides expand
their seeds column wise, the receiver folds its choice bits into a
correction vector, and a random linear check over GF(2^128) keyed by
a coin toss catches inconsistent columns before any key is derived.
*/

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/util"
)

const (
	// BaseCount is the number of base OT instances consumed by Setup,
	// one per matrix column.
	BaseCount = 128
	// statSecParam pads the extension with extra rows so that the
	// linear check leaks nothing about the real choice bits.
	statSecParam = 64
)

var (
	ErrBaseCountMissMatch = errors.New("provided base OT seeds do not match the column count")
	ErrInvalidState       = errors.New("extension phase already consumed or out of order")
	ErrConsistencyCheck   = errors.New("correlation check failed")
	ErrInsufficientSetup  = errors.New("requested more OT instances than were extended")
	ErrCountMismatch      = errors.New("vector length does not match the expected count")
)

// SenderConfig configures the extension sender.
type SenderConfig struct {
	// SenderCommit makes the sender commit to Delta at setup so the
	// session can later be opened for auditing with RevealDelta.
	SenderCommit bool
}

// ReceiverConfig configures the extension receiver.
type ReceiverConfig struct {
	SenderCommit bool
}

const (
	phaseSetup = iota
	phaseExtended
	phaseChecked
)

// Sender is the extension sender. It holds the session secret Delta
// and, after Extend and Check, one correlated block per row.
type Sender struct {
	config     SenderConfig
	delta      block.Block
	deltaBits  []byte
	seeds      []block.Block
	decommit   crypto.Decommitment
	phase      int
	count      int
	rows       []block.Block
	cursor     int
	flips      []bool
	extendRows int
}

// NewSender builds an extension sender from the base OT output:
// choices are the 128 Delta bits used as base OT choice bits and
// seeds are the blocks received for them. When SenderCommit is set
// the returned SessionCommit binds Delta for a later reveal.
func NewSender(choices []bool, seeds []block.Block, config SenderConfig) (*Sender, *SessionCommit, error) {
	if len(choices) != BaseCount || len(seeds) != BaseCount {
		return nil, nil, ErrBaseCountMissMatch
	}

	deltaBits := util.PackBools(choices)
	var delta block.Block
	delta.SetBytes(deltaBits)

	s := &Sender{
		config:    config,
		delta:     delta,
		deltaBits: deltaBits,
		seeds:     append([]block.Block(nil), seeds...),
	}

	var commit *SessionCommit
	if config.SenderCommit {
		c, d, err := crypto.Commit(delta.Bytes())
		if err != nil {
			return nil, nil, err
		}
		s.decommit = d
		commit = &SessionCommit{Commitment: c}
	}
	return s, commit, nil
}

// Delta returns the session correlation secret.
func (s *Sender) Delta() block.Block {
	return s.delta
}

// Extend consumes the receiver correction vector and expands the
// seed columns into ext.Count correlated rows plus check padding.
func (s *Sender) Extend(ext *Extend) error {
	if s.phase != phaseSetup {
		return ErrInvalidState
	}

	count := int(ext.Count)
	m := extendedRows(count)
	colBytes := m / 8
	if len(ext.Us) != BaseCount*colBytes {
		return ErrCountMismatch
	}

	cols := make([][]byte, BaseCount)
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < BaseCount; i++ {
		i := i
		g.Go(func() error {
			col := make([]byte, colBytes)
			if err := crypto.PseudorandomGenerate(col, s.seeds[i].Bytes(), blake3.New()); err != nil {
				return err
			}
			if util.BitSetInByte(s.deltaBits, i) == 1 {
				util.Xor(col, ext.Us[i*colBytes:(i+1)*colBytes])
			}
			cols[i] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("expanding columns: %w", err)
	}

	s.rows = rowsFromColumns(cols, m)
	s.count = count
	s.extendRows = m
	s.phase = phaseExtended
	return nil
}

// Check verifies the receiver check triple against the chi challenge
// derived from the coin toss seed. On success the padding rows are
// discarded and keys may be derived.
func (s *Sender) Check(chiSeed block.Block, c *Check) error {
	if s.phase != phaseExtended {
		return ErrInvalidState
	}

	chis := make([]block.Block, s.extendRows)
	block.PowerSeries(chiSeed, chis)

	qLo, qHi := block.ClMulSum(s.rows, chis[:len(s.rows)])

	dLo, dHi := block.ClMul(c.X, s.delta)
	if !qLo.Equal(c.T0.Xor(dLo)) || !qHi.Equal(c.T1.Xor(dHi)) {
		return ErrConsistencyCheck
	}

	s.rows = s.rows[:s.count]
	s.phase = phaseChecked
	return nil
}

// Derandomize records the receiver flip bits for the next Keys call,
// swapping each key pair whose random choice bit disagreed with the
// application choice bit.
func (s *Sender) Derandomize(d *Derandomize) error {
	if s.phase != phaseChecked {
		return ErrInvalidState
	}
	if s.flips != nil {
		return ErrInvalidState
	}
	if int(d.Count) > s.count-s.cursor {
		return ErrInsufficientSetup
	}
	s.flips = util.UnpackBools(d.Flip, int(d.Count))
	return nil
}

// Keys consumes the next n rows and returns one key pair per row,
// broken free of the Delta correlation through the correlation
// robust hash. A pending Derandomize must cover exactly n rows.
func (s *Sender) Keys(n int) ([][2]block.Block, error) {
	if s.phase != phaseChecked {
		return nil, ErrInvalidState
	}
	if n > s.count-s.cursor {
		return nil, ErrInsufficientSetup
	}
	if s.flips != nil && len(s.flips) != n {
		return nil, ErrCountMismatch
	}

	k0 := make([]block.Block, n)
	k1 := make([]block.Block, n)
	for i := 0; i < n; i++ {
		k0[i] = s.rows[s.cursor+i]
		k1[i] = k0[i].Xor(s.delta)
		if s.flips != nil && s.flips[i] {
			k0[i], k1[i] = k1[i], k0[i]
		}
	}
	crypto.CrHashBlocks(k0, uint64(s.cursor))
	crypto.CrHashBlocks(k1, uint64(s.cursor))
	keys := make([][2]block.Block, n)
	for i := range keys {
		keys[i] = [2]block.Block{k0[i], k1[i]}
	}
	s.cursor += n
	s.flips = nil
	return keys, nil
}

// Correlated consumes the next n rows as raw correlated OT blocks:
// for every returned q the receiver holds either q or q XOR Delta
// according to its choice bit.
func (s *Sender) Correlated(n int) ([]block.Block, error) {
	if s.phase != phaseChecked {
		return nil, ErrInvalidState
	}
	if s.flips != nil {
		return nil, ErrInvalidState
	}
	if n > s.count-s.cursor {
		return nil, ErrInsufficientSetup
	}
	out := append([]block.Block(nil), s.rows[s.cursor:s.cursor+n]...)
	s.cursor += n
	return out, nil
}

// SendPayload encrypts one message pair per slot under freshly
// derived keys, consuming the corresponding rows.
func (s *Sender) SendPayload(id uint32, messages [][2]block.Block) (*SenderPayload, error) {
	keys, err := s.Keys(len(messages))
	if err != nil {
		return nil, err
	}
	p := &SenderPayload{ID: id, Ciphertexts: make([][2]block.Block, len(messages))}
	for i, m := range messages {
		p.Ciphertexts[i][0] = m[0].Xor(keys[i][0])
		p.Ciphertexts[i][1] = m[1].Xor(keys[i][1])
	}
	return p, nil
}

// RevealDelta opens the Delta commitment made at setup.
func (s *Sender) RevealDelta() (*SessionReveal, error) {
	if !s.config.SenderCommit {
		return nil, ErrInvalidState
	}
	return &SessionReveal{Decommitment: s.decommit}, nil
}

// VerifyDelta checks a session reveal against the setup commitment
// and returns the opened Delta. Opening ends the secrecy of every
// correlated block of the session; callers use it for audits only.
func VerifyDelta(c *SessionCommit, r *SessionReveal) (block.Block, error) {
	if err := c.Commitment.Verify(r.Decommitment); err != nil {
		return block.Block{}, err
	}
	if len(r.Decommitment.Value) != block.Size {
		return block.Block{}, ErrCountMismatch
	}
	var delta block.Block
	delta.SetBytes(r.Decommitment.Value)
	return delta, nil
}

// extendedRows pads count with the column width and the statistical
// margin, rounded up so the packed transpose applies.
func extendedRows(count int) int {
	m := count + BaseCount + statSecParam
	return m + util.PadTill8(m)
}

// rowsFromColumns transposes 128 packed bit columns of m rows each
// into m row blocks.
func rowsFromColumns(cols [][]byte, m int) []block.Block {
	packed := util.TransposeBooleanMatrix(cols)
	rows := make([]block.Block, m)
	for j := range rows {
		rows[j].SetBytes(packed[j])
	}
	return rows
}

package cot

/*
End to end correlated OT over an io.ReadWriter.

The sender ends up with a secret Delta and blocks v_i; the receiver
ends up with choice bits u_i and blocks w_i = v_i XOR u_i*Delta. The
pipeline chains a batch of base OTs, a KOS style OT extension to
bootstrap a short seed pool, and repeated Ferret silent extend
rounds until the requested count is reached.

stage 1: base OTs. The cot sender plays the base OT receiver with
         the bits of a fresh Delta as choices; the cot receiver
         plays the base OT sender with fresh seed pairs.
stage 2: KOS extension of k + budget correlated OTs, where k is the
         LPN seed pool length and budget is the per round multi
         point tree cost. The extension is checked against a coin
         tossed challenge seed.
stage 3: Ferret rounds. Each round reserves its first emitted
         blocks as the next round's tree OTs and appends the rest
         to the output.

Both parties must agree on the LPN parameters out of band; the
noise positions sampled by the receiver never leave it.
*/

import (
	"errors"
	"io"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/lpn"
)

var (
	// ErrCount rejects non positive output counts.
	ErrCount = errors.New("requested correlated OT count must be positive")
	// ErrParams rejects LPN parameters whose extend rounds cannot
	// emit any output after reserving the next round's tree OTs.
	ErrParams = errors.New("lpn parameters leave no room for output per round")
)

// SenderConfig configures the correlated OT sender.
type SenderConfig struct {
	// Params selects the LPN code driving silent expansion. Both
	// parties must use the same parameters.
	Params lpn.Params
	// ReceiverCommit commits the sender to its base OT choice bits,
	// binding Delta for the whole session. The commitment is never
	// opened.
	ReceiverCommit bool
}

// ReceiverConfig configures the correlated OT receiver.
type ReceiverConfig struct {
	Params lpn.Params
	// ReceiverCommit requires the sender's base OT commitment.
	ReceiverCommit bool
}

// DefaultSenderConfig uses the medium LPN preset.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{Params: lpn.Medium}
}

// DefaultReceiverConfig mirrors DefaultSenderConfig.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{Params: lpn.Medium}
}

func writeBlock(w io.Writer, b block.Block) error {
	_, err := w.Write(b.Bytes())
	return err
}

func readBlock(r io.Reader, b *block.Block) error {
	var buf [block.Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	b.SetBytes(buf[:])
	return nil
}

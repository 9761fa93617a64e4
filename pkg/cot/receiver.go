package cot

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/cointoss"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/ferret"
	"github.com/optable/silentot/internal/ot"
	"github.com/optable/silentot/internal/otext"
	"github.com/optable/silentot/internal/spcot"
	"github.com/optable/silentot/internal/util"
)

// Receiver is the choice bit side of the correlated OT pipeline,
// initialized to use rw as the communication layer.
type Receiver struct {
	rw     io.ReadWriter
	config ReceiverConfig
}

// NewReceiver returns a receiver with the default configuration.
func NewReceiver(rw io.ReadWriter) *Receiver {
	return NewReceiverWithConfig(rw, DefaultReceiverConfig())
}

func NewReceiverWithConfig(rw io.ReadWriter, config ReceiverConfig) *Receiver {
	return &Receiver{rw: rw, config: config}
}

// Receive produces count correlated OT instances: blocks w and
// uniform choice bits u such that w_i = v_i XOR u_i*Delta against
// the sender's outputs. Receive blocks until the protocol completes
// or ctx is done.
func (r *Receiver) Receive(ctx context.Context, count int) (out []block.Block, bits []bool, err error) {
	logger := logr.FromContextOrDiscard(ctx)
	logger = logger.WithValues("protocol", "ferret")

	if count <= 0 {
		return nil, nil, ErrCount
	}

	start := time.Now()
	params := r.config.Params

	var pairs [][2]block.Block
	var kos *otext.Receiver
	var matrixSeed, hashSeed block.Block
	var budget int

	// stage 1: play the base OT sender with fresh seed pairs; the
	// pairs become the extension seed columns.
	stage1 := func() error {
		logger.V(1).Info("Starting stage 1")

		baseConfig := ot.DefaultSenderConfig()
		baseConfig.ReceiverCommit = r.config.ReceiverCommit
		base, err := ot.NewSender(baseConfig)
		if err != nil {
			return err
		}
		setup, ready, err := base.Setup()
		if err != nil {
			return err
		}
		if err := setup.Encode(r.rw); err != nil {
			return err
		}

		flat, err := block.NewSlice(rand.Reader, 2*otext.BaseCount)
		if err != nil {
			return err
		}
		pairs = make([][2]block.Block, otext.BaseCount)
		for i := range pairs {
			pairs[i] = [2]block.Block{flat[2*i], flat[2*i+1]}
		}

		var remoteSetup ot.ReceiverSetup
		if err := remoteSetup.Decode(r.rw); err != nil {
			return err
		}
		var blinded ot.ReceiverPayload
		if err := blinded.Decode(r.rw); err != nil {
			return err
		}
		masked, _, err := ready.Send(pairs, &remoteSetup, &blinded)
		if err != nil {
			return err
		}
		if err := masked.Encode(r.rw); err != nil {
			return err
		}

		logger.V(2).Info("stage time", "stage", 1, "took", time.Since(start).String())
		logger.V(1).Info("Finished stage 1")
		return nil
	}

	// stage 2: KOS extension with random choice bits, checked
	// against the coin tossed challenge.
	stage2 := func() error {
		logger.V(1).Info("Starting stage 2")
		timer := time.Now()

		var matrixMsg ferret.LpnMatrixSeed
		if err := matrixMsg.Decode(r.rw); err != nil {
			return err
		}
		var hashMsg ferret.HashSeed
		if err := hashMsg.Decode(r.rw); err != nil {
			return err
		}
		matrixSeed, hashSeed = matrixMsg.Seed, hashMsg.Seed

		probe, err := spcot.NewMultiReceiver(uint64(params.N), uint64(params.T), hashSeed)
		if err != nil {
			return err
		}
		budget = probe.CotCount()
		if params.N-params.K-budget < 1 {
			return ErrParams
		}

		kos, err = otext.NewReceiver(pairs, otext.ReceiverConfig{})
		if err != nil {
			return err
		}
		ext, err := kos.Extend(params.K+budget, nil)
		if err != nil {
			return err
		}
		if err := ext.Encode(r.rw); err != nil {
			return err
		}

		chi, err := r.tossChallenge()
		if err != nil {
			return err
		}
		check, err := kos.Check(chi)
		if err != nil {
			return err
		}
		if err := check.Encode(r.rw); err != nil {
			return err
		}

		logger.V(2).Info("stage time", "stage", 2, "took", time.Since(timer).String())
		logger.V(1).Info("Finished stage 2")
		return nil
	}

	// stage 3: Ferret rounds until count blocks are emitted.
	stage3 := func() error {
		logger.V(1).Info("Starting stage 3")
		timer := time.Now()

		pool, poolBits, err := kos.Correlated(params.K)
		if err != nil {
			return err
		}
		cots, cotBits, err := kos.Correlated(budget)
		if err != nil {
			return err
		}
		f, err := ferret.NewReceiver(pool, poolBits, params, matrixSeed, hashSeed)
		if err != nil {
			return err
		}

		out = make([]block.Block, 0, count)
		bits = make([]bool, 0, count)
		for len(out) < count {
			req, err := f.Request(cotBits)
			if err != nil {
				return err
			}
			if err := req.Encode(r.rw); err != nil {
				return err
			}

			var resp spcot.MultiResponse
			if err := resp.Decode(r.rw); err != nil {
				return err
			}
			proof, err := f.Recover(&resp, cots)
			if err != nil {
				return err
			}
			if err := proof.Encode(r.rw); err != nil {
				return err
			}

			var open spcot.CheckOpen
			if err := open.Decode(r.rw); err != nil {
				return err
			}
			fresh, freshBits, err := f.Finish(&open)
			if err != nil {
				return err
			}

			// the first budget blocks feed the next round's trees
			cots, cotBits = fresh[:budget], freshBits[:budget]
			out = append(out, fresh[budget:]...)
			bits = append(bits, freshBits[budget:]...)
		}
		out, bits = out[:count], bits[:count]

		logger.V(2).Info("stage time", "stage", 3, "took", time.Since(timer).String())
		logger.V(1).Info("Finished stage 3", "count", count, "total", time.Since(start).String())
		return nil
	}

	if err := util.Sel(ctx, stage1); err != nil {
		return nil, nil, err
	}
	if err := util.Sel(ctx, stage2); err != nil {
		return nil, nil, err
	}
	if err := util.Sel(ctx, stage3); err != nil {
		return nil, nil, err
	}

	return out, bits, nil
}

// tossChallenge runs the revealing side of a single block coin
// toss and returns the agreed challenge seed.
func (r *Receiver) tossChallenge() (block.Block, error) {
	toss, err := cointoss.NewReceiver(1, rand.Reader)
	if err != nil {
		return block.Block{}, err
	}

	var commitment crypto.Commitment
	if _, err := io.ReadFull(r.rw, commitment[:]); err != nil {
		return block.Block{}, err
	}
	seeds, err := toss.Reveal([]crypto.Commitment{commitment})
	if err != nil {
		return block.Block{}, err
	}
	if err := writeBlock(r.rw, seeds[0]); err != nil {
		return block.Block{}, err
	}

	var decommit crypto.Decommitment
	if _, err := io.ReadFull(r.rw, decommit.Nonce[:]); err != nil {
		return block.Block{}, err
	}
	decommit.Value, err = util.ReadLenPrefixed(r.rw)
	if err != nil {
		return block.Block{}, err
	}
	if err := toss.Receive([]crypto.Decommitment{decommit}); err != nil {
		return block.Block{}, err
	}

	agreed, err := toss.Finalize()
	if err != nil {
		return block.Block{}, err
	}
	return agreed[0], nil
}

package cot

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/cointoss"
	"github.com/optable/silentot/internal/ferret"
	"github.com/optable/silentot/internal/ot"
	"github.com/optable/silentot/internal/otext"
	"github.com/optable/silentot/internal/spcot"
	"github.com/optable/silentot/internal/util"
)

// Sender is the Delta holding side of the correlated OT pipeline,
// initialized to use rw as the communication layer.
type Sender struct {
	rw     io.ReadWriter
	config SenderConfig
}

// NewSender returns a sender with the default configuration.
func NewSender(rw io.ReadWriter) *Sender {
	return NewSenderWithConfig(rw, DefaultSenderConfig())
}

func NewSenderWithConfig(rw io.ReadWriter, config SenderConfig) *Sender {
	return &Sender{rw: rw, config: config}
}

// Send produces count correlated OT instances: a session secret
// Delta and blocks v such that the receiver ends up with
// w_i = v_i XOR u_i*Delta for its choice bits u. Send blocks until
// the protocol completes or ctx is done.
func (s *Sender) Send(ctx context.Context, count int) (delta block.Block, out []block.Block, err error) {
	logger := logr.FromContextOrDiscard(ctx)
	logger = logger.WithValues("protocol", "ferret")

	if count <= 0 {
		return block.Block{}, nil, ErrCount
	}

	start := time.Now()
	params := s.config.Params

	var deltaBits []bool
	var seeds []block.Block
	var kos *otext.Sender
	var matrixSeed, hashSeed block.Block
	var budget int

	// stage 1: play the base OT receiver with fresh random choice
	// bits; the choices become the bits of Delta.
	stage1 := func() error {
		logger.V(1).Info("Starting stage 1")

		baseConfig := ot.DefaultReceiverConfig()
		baseConfig.ReceiverCommit = s.config.ReceiverCommit
		base, err := ot.NewReceiver(baseConfig)
		if err != nil {
			return err
		}
		setup, ready, err := base.SetupRandom(otext.BaseCount)
		if err != nil {
			return err
		}

		var remote ot.SenderSetup
		if err := remote.Decode(s.rw); err != nil {
			return err
		}
		payload, blinded, err := ready.Blind(&remote)
		if err != nil {
			return err
		}
		if err := setup.Encode(s.rw); err != nil {
			return err
		}
		if err := payload.Encode(s.rw); err != nil {
			return err
		}

		var masked ot.SenderPayload
		if err := masked.Decode(s.rw); err != nil {
			return err
		}
		var complete *ot.ReceiverComplete
		seeds, complete, err = blinded.Receive(&masked)
		if err != nil {
			return err
		}
		deltaBits = complete.Choices()

		logger.V(2).Info("stage time", "stage", 1, "took", time.Since(start).String())
		logger.V(1).Info("Finished stage 1")
		return nil
	}

	// stage 2: KOS extension of k + budget correlated OTs with the
	// coin tossed consistency check.
	stage2 := func() error {
		logger.V(1).Info("Starting stage 2")
		timer := time.Now()

		kos, _, err = otext.NewSender(deltaBits, seeds, otext.SenderConfig{})
		if err != nil {
			return err
		}
		delta = kos.Delta()

		matrixSeed, err = block.New(rand.Reader)
		if err != nil {
			return err
		}
		hashSeed, err = block.New(rand.Reader)
		if err != nil {
			return err
		}
		if err := (&ferret.LpnMatrixSeed{Seed: matrixSeed}).Encode(s.rw); err != nil {
			return err
		}
		if err := (&ferret.HashSeed{Seed: hashSeed}).Encode(s.rw); err != nil {
			return err
		}

		probe, err := spcot.NewMultiSender(uint64(params.N), uint64(params.T), hashSeed, delta)
		if err != nil {
			return err
		}
		budget = probe.CotCount()
		if params.N-params.K-budget < 1 {
			return ErrParams
		}

		var ext otext.Extend
		if err := ext.Decode(s.rw); err != nil {
			return err
		}
		if err := kos.Extend(&ext); err != nil {
			return err
		}

		chi, err := s.tossChallenge()
		if err != nil {
			return err
		}
		var check otext.Check
		if err := check.Decode(s.rw); err != nil {
			return err
		}
		if err := kos.Check(chi, &check); err != nil {
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

		pool, err := kos.Correlated(params.K)
		if err != nil {
			return err
		}
		cots, err := kos.Correlated(budget)
		if err != nil {
			return err
		}
		f, err := ferret.NewSender(delta, pool, params, matrixSeed, hashSeed)
		if err != nil {
			return err
		}

		out = make([]block.Block, 0, count)
		for len(out) < count {
			var req spcot.MultiRequest
			if err := req.Decode(s.rw); err != nil {
				return err
			}
			resp, err := f.Respond(&req, cots)
			if err != nil {
				return err
			}
			if err := resp.Encode(s.rw); err != nil {
				return err
			}

			var proof spcot.CheckProof
			if err := proof.Decode(s.rw); err != nil {
				return err
			}
			open, fresh, err := f.Finish(&proof)
			if err != nil {
				return err
			}
			if err := open.Encode(s.rw); err != nil {
				return err
			}

			// the first budget blocks feed the next round's trees
			cots = fresh[:budget]
			out = append(out, fresh[budget:]...)
		}
		out = out[:count]

		logger.V(2).Info("stage time", "stage", 3, "took", time.Since(timer).String())
		logger.V(1).Info("Finished stage 3", "count", count, "total", time.Since(start).String())
		return nil
	}

	if err := util.Sel(ctx, stage1); err != nil {
		return block.Block{}, nil, err
	}
	if err := util.Sel(ctx, stage2); err != nil {
		return block.Block{}, nil, err
	}
	if err := util.Sel(ctx, stage3); err != nil {
		return block.Block{}, nil, err
	}

	return delta, out, nil
}

// tossChallenge runs the committing side of a single block coin
// toss and returns the agreed challenge seed.
func (s *Sender) tossChallenge() (block.Block, error) {
	toss, err := cointoss.NewSender(1, rand.Reader)
	if err != nil {
		return block.Block{}, err
	}
	commits, err := toss.Commit()
	if err != nil {
		return block.Block{}, err
	}
	if _, err := s.rw.Write(commits[0][:]); err != nil {
		return block.Block{}, err
	}

	var theirs block.Block
	if err := readBlock(s.rw, &theirs); err != nil {
		return block.Block{}, err
	}
	decommits, err := toss.Receive([]block.Block{theirs})
	if err != nil {
		return block.Block{}, err
	}
	if _, err := s.rw.Write(decommits[0].Nonce[:]); err != nil {
		return block.Block{}, err
	}
	if err := util.WriteLenPrefixed(s.rw, decommits[0].Value); err != nil {
		return block.Block{}, err
	}

	agreed, err := toss.Finalize()
	if err != nil {
		return block.Block{}, err
	}
	return agreed[0], nil
}

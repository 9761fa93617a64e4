package cot

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/lpn"
	"github.com/optable/silentot/pkg/log"
)

var testParams = lpn.Params{N: 2048, K: 256, T: 8}

// runPipeline drives both parties over a net.Pipe and returns the
// sender and receiver outputs.
func runPipeline(t *testing.T, senderConfig SenderConfig, receiverConfig ReceiverConfig, count int) (block.Block, []block.Block, []block.Block, []bool) {
	t.Helper()

	senderRW, receiverRW := net.Pipe()
	ctx := log.ContextWithLogger(context.Background(), log.GetLogger(0))

	var delta block.Block
	var v []block.Block
	errs := make(chan error, 1)
	go func() {
		var err error
		delta, v, err = NewSenderWithConfig(senderRW, senderConfig).Send(ctx, count)
		errs <- err
	}()

	w, u, err := NewReceiverWithConfig(receiverRW, receiverConfig).Receive(ctx, count)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("send: %v", err)
	}
	return delta, v, w, u
}

func assertCorrelated(t *testing.T, delta block.Block, v, w []block.Block, u []bool) {
	t.Helper()
	for i := range v {
		want := v[i]
		if u[i] {
			want = want.Xor(delta)
		}
		if !w[i].Equal(want) {
			t.Fatalf("instance %d: correlation does not hold", i)
		}
	}
}

func TestCorrelatedOT(t *testing.T) {
	count := 3000 // forces more than one extend round
	delta, v, w, u := runPipeline(t, SenderConfig{Params: testParams}, ReceiverConfig{Params: testParams}, count)

	if len(v) != count || len(w) != count || len(u) != count {
		t.Fatalf("got %d/%d/%d instances, want %d", len(v), len(w), len(u), count)
	}
	assertCorrelated(t, delta, v, w, u)

	// choice bits come out of the LPN expansion and must not be
	// degenerate
	var ones int
	for _, b := range u {
		if b {
			ones++
		}
	}
	if ones == 0 || ones == count {
		t.Fatalf("degenerate choice bits: %d ones of %d", ones, count)
	}
}

func TestSingleRound(t *testing.T) {
	delta, v, w, u := runPipeline(t, SenderConfig{Params: testParams}, ReceiverConfig{Params: testParams}, 100)
	assertCorrelated(t, delta, v, w, u)
}

func TestReceiverCommit(t *testing.T) {
	senderConfig := SenderConfig{Params: testParams, ReceiverCommit: true}
	receiverConfig := ReceiverConfig{Params: testParams, ReceiverCommit: true}
	delta, v, w, u := runPipeline(t, senderConfig, receiverConfig, 100)
	assertCorrelated(t, delta, v, w, u)
}

func TestCountValidation(t *testing.T) {
	senderRW, receiverRW := net.Pipe()
	defer senderRW.Close()
	defer receiverRW.Close()

	if _, _, err := NewSender(senderRW).Send(context.Background(), 0); !errors.Is(err, ErrCount) {
		t.Fatalf("sender: got %v, want ErrCount", err)
	}
	if _, _, err := NewReceiver(receiverRW).Receive(context.Background(), -1); !errors.Is(err, ErrCount) {
		t.Fatalf("receiver: got %v, want ErrCount", err)
	}
}

func TestParamsValidation(t *testing.T) {
	// n barely above k leaves no room for output once the per round
	// tree budget is reserved
	bad := lpn.Params{N: 280, K: 256, T: 8}
	senderRW, receiverRW := net.Pipe()

	errs := make(chan error, 1)
	go func() {
		_, _, err := NewSenderWithConfig(senderRW, SenderConfig{Params: bad}).Send(context.Background(), 10)
		errs <- err
	}()

	_, _, err := NewReceiverWithConfig(receiverRW, ReceiverConfig{Params: bad}).Receive(context.Background(), 10)
	if !errors.Is(err, ErrParams) {
		t.Fatalf("receiver: got %v, want ErrParams", err)
	}
	if err := <-errs; !errors.Is(err, ErrParams) {
		t.Fatalf("sender: got %v, want ErrParams", err)
	}
}

func TestContextCancel(t *testing.T) {
	senderRW, _ := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewSender(senderRW).Send(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

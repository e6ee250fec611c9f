package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestPeriodic(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	p := &periodic{
		name:     "test worker",
		interval: 2 * time.Millisecond,
		timeout:  time.Second,
		fn:       func(context.Context) { calls.Add(1) },
		logger:   zap.NewNop(),
	}

	p.Start()
	p.Start()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	p.Stop()

	after := calls.Load()
	p.Start()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	p.Stop()
}

func TestPeriodic_StopCancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	entered := make(chan struct{})
	var once atomic.Bool
	p := &periodic{
		name:     "blocking worker",
		interval: time.Millisecond,
		timeout:  time.Minute,
		fn: func(ctx context.Context) {
			if once.CompareAndSwap(false, true) {
				close(entered)
			}
			<-ctx.Done()
		},
		logger: zap.NewNop(),
	}

	p.Start()
	<-entered

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the running call")
	}
}

func TestPeriodic_StopBeforeStart(t *testing.T) {
	p := &periodic{name: "idle", interval: time.Millisecond, logger: zap.NewNop()}
	p.Stop()
	p.Start()
	p.Stop()
}

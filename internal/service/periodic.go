package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// periodic calls fn every interval on one background goroutine. Stop
// cancels a call in flight and waits for the goroutine to exit.
type periodic struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       func(ctx context.Context)
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func (p *periodic) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

func (p *periodic) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.stopped {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	interval := p.interval

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		p.logger.Info(p.name+" started", zap.Duration("interval", interval))
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, p.timeout)
				p.fn(runCtx)
				cancel()
			case <-ctx.Done():
				p.logger.Info(p.name + " stopped")
				return
			}
		}
	}()
}

func (p *periodic) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

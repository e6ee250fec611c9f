package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultStageDuration  = 2 * time.Minute
	defaultTickerInterval = 1 * time.Second
)

// StageTicker advances the coordinator once a stage has lasted
// stageDuration.
type StageTicker struct {
	periodic
	svc           *CoordinatorService
	stageDuration time.Duration
	now           func() time.Time
}

func NewStageTicker(svc *CoordinatorService, stageDuration time.Duration, logger *zap.Logger) *StageTicker {
	if stageDuration <= 0 {
		stageDuration = DefaultStageDuration
	}
	t := &StageTicker{
		svc:           svc,
		stageDuration: stageDuration,
		now:           time.Now,
	}
	t.periodic = periodic{
		name:     "stage ticker",
		interval: defaultTickerInterval,
		timeout:  10 * time.Second,
		fn:       t.tick,
		logger:   logger.With(zap.Duration("stage_duration", stageDuration)),
	}
	return t
}

func (t *StageTicker) tick(ctx context.Context) {
	if _, err := t.svc.AdvanceIfDue(ctx, t.stageDuration, t.now()); err != nil {
		t.logger.Error("failed to advance stage", zap.Error(err))
	}
}

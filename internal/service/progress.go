package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

var ErrCoordinatorStalled = errors.New("coordinator did not move past a completed stage")

var errStageAlreadyDone = errors.New("stage already completed")

// ProgressSource decides which (round, stage) a node works on next.
type ProgressSource interface {
	Next(ctx context.Context, node *domain.NodeState) (domain.Progress, error)
	// Done is called after the node finished p.
	Done(node *domain.NodeState, p domain.Progress)
}

// LocalProgress trusts the node's own counters.
type LocalProgress struct{}

func (LocalProgress) Next(_ context.Context, node *domain.NodeState) (domain.Progress, error) {
	return node.Progress(), nil
}

func (LocalProgress) Done(node *domain.NodeState, _ domain.Progress) {
	node.AdvanceStage()
}

// CoordinatedProgress defers to a coordinator. The node's counters are
// overwritten with whatever the coordinator reports, forwards or backwards.
// If the reported stage is one this node already finished, it polls until
// the coordinator moves on.
type CoordinatedProgress struct {
	coordinator  domain.Coordinator
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

// NewCoordinatedProgress polls every pollInterval. A maxWait of zero waits
// for as long as ctx allows.
func NewCoordinatedProgress(c domain.Coordinator, pollInterval, maxWait time.Duration, logger *zap.Logger) *CoordinatedProgress {
	if pollInterval <= 0 {
		pollInterval = DefaultCheckInterval
	}
	return &CoordinatedProgress{
		coordinator:  c,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       logger,
	}
}

func (c *CoordinatedProgress) Next(ctx context.Context, node *domain.NodeState) (domain.Progress, error) {
	b := retry.NewConstant(c.pollInterval)
	if c.maxWait > 0 {
		b = retry.WithMaxDuration(c.maxWait, b)
	}

	p, err := retry.DoValue(ctx, b, func(ctx context.Context) (domain.Progress, error) {
		round, stage, err := c.coordinator.GetRoundAndStage(ctx)
		if err != nil {
			return domain.Progress{}, fmt.Errorf("get round and stage: %w", err)
		}
		p := domain.Progress{Round: round, Stage: stage}
		if node.Completed(p.Round, p.Stage) {
			return domain.Progress{}, retry.RetryableError(errStageAlreadyDone)
		}
		return p, nil
	})
	if errors.Is(err, errStageAlreadyDone) {
		return domain.Progress{}, ErrCoordinatorStalled
	}
	if err != nil {
		return domain.Progress{}, err
	}

	if local := node.Progress(); local != p {
		c.logger.Info("syncing progress with coordinator",
			zap.Int("local_round", local.Round),
			zap.String("local_stage", local.Stage.String()),
			zap.Int("round", p.Round),
			zap.String("stage", p.Stage.String()))
		node.SetProgress(p)
	}
	return p, nil
}

func (c *CoordinatedProgress) Done(*domain.NodeState, domain.Progress) {}

package service

import (
	"context"
	"sort"
	"sync"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"go.uber.org/zap"
)

// LockstepCoordinator is an in-process coordinator for a known set of
// nodes. It advances the stage once every node has submitted its reward for
// the current one.
type LockstepCoordinator struct {
	mu        sync.Mutex
	nodes     map[string]bool
	current   domain.Progress
	submitted map[string]bool
	rewards   map[domain.Progress]map[string]int
	winners   map[int]map[string]string
	logger    *zap.Logger
}

func NewLockstepCoordinator(nodeKeys []string, logger *zap.Logger) *LockstepCoordinator {
	nodes := make(map[string]bool, len(nodeKeys))
	for _, k := range nodeKeys {
		nodes[k] = true
	}
	return &LockstepCoordinator{
		nodes:     nodes,
		submitted: make(map[string]bool),
		rewards:   make(map[domain.Progress]map[string]int),
		winners:   make(map[int]map[string]string),
		logger:    logger,
	}
}

func (c *LockstepCoordinator) GetRoundAndStage(ctx context.Context) (int, domain.Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Round, c.current.Stage, nil
}

func (c *LockstepCoordinator) SubmitReward(ctx context.Context, round int, stage domain.Stage, reward int, nodeKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nodes[nodeKey] {
		return ErrPeerNotFound
	}
	if reward < 0 {
		return ErrInvalidReward
	}
	p := domain.Progress{Round: round, Stage: stage}
	if p != c.current {
		return ErrStaleRound
	}
	if c.submitted[nodeKey] {
		return ErrDuplicateReward
	}

	c.submitted[nodeKey] = true
	if c.rewards[p] == nil {
		c.rewards[p] = make(map[string]int)
	}
	c.rewards[p][nodeKey] = reward

	if len(c.submitted) == len(c.nodes) {
		c.current = c.current.Next()
		c.submitted = make(map[string]bool)
		c.logger.Debug("lockstep advanced",
			zap.Int("round", c.current.Round),
			zap.String("stage", c.current.Stage.String()))
	}
	return nil
}

func (c *LockstepCoordinator) SubmitWinners(ctx context.Context, round int, winners []string, nodeKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nodes[nodeKey] {
		return ErrPeerNotFound
	}
	if len(winners) == 0 {
		return ErrNoWinners
	}
	if c.winners[round] == nil {
		c.winners[round] = make(map[string]string)
	}
	if _, ok := c.winners[round][nodeKey]; ok {
		return ErrDuplicateWinners
	}
	c.winners[round][nodeKey] = winners[0]
	return nil
}

// Tally counts the winner votes for round, most votes first, ties by key.
func (c *LockstepCoordinator) Tally(round int) []domain.WinnerTally {
	c.mu.Lock()
	defer c.mu.Unlock()

	votes := make(map[string]int)
	for _, w := range c.winners[round] {
		votes[w]++
	}
	out := make([]domain.WinnerTally, 0, len(votes))
	for _, k := range domain.SortedKeys(votes) {
		total := 0
		for s := domain.StageAnswer; s <= domain.StageConsensus; s++ {
			total += c.rewards[domain.Progress{Round: round, Stage: s}][k]
		}
		out = append(out, domain.WinnerTally{NodeKey: k, Votes: votes[k], TotalReward: total})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	return out
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func TestLockstepCoordinator_Advance(t *testing.T) {
	ctx := context.Background()
	c := NewLockstepCoordinator([]string{"a", "b"}, zap.NewNop())

	require.NoError(t, c.SubmitReward(ctx, 0, domain.StageAnswer, 3, "a"))
	assert.ErrorIs(t, c.SubmitReward(ctx, 0, domain.StageAnswer, 3, "a"), ErrDuplicateReward)

	round, stage, err := c.GetRoundAndStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, round)
	assert.Equal(t, domain.StageAnswer, stage)

	require.NoError(t, c.SubmitReward(ctx, 0, domain.StageAnswer, 1, "b"))
	round, stage, _ = c.GetRoundAndStage(ctx)
	assert.Equal(t, 0, round)
	assert.Equal(t, domain.StageCritique, stage)

	assert.ErrorIs(t, c.SubmitReward(ctx, 0, domain.StageAnswer, 1, "b"), ErrStaleRound)
	assert.ErrorIs(t, c.SubmitReward(ctx, 0, domain.StageCritique, -1, "b"), ErrInvalidReward)
	assert.ErrorIs(t, c.SubmitReward(ctx, 0, domain.StageCritique, 1, "zed"), ErrPeerNotFound)
}

func TestLockstepCoordinator_Tally(t *testing.T) {
	ctx := context.Background()
	c := NewLockstepCoordinator([]string{"a", "b", "c"}, zap.NewNop())

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.SubmitReward(ctx, 0, domain.StageAnswer, 2, k))
	}
	require.NoError(t, c.SubmitWinners(ctx, 0, []string{"b", "a"}, "a"))
	require.NoError(t, c.SubmitWinners(ctx, 0, []string{"b"}, "b"))
	require.NoError(t, c.SubmitWinners(ctx, 0, []string{"a"}, "c"))
	assert.ErrorIs(t, c.SubmitWinners(ctx, 0, []string{"a"}, "c"), ErrDuplicateWinners)
	assert.ErrorIs(t, c.SubmitWinners(ctx, 0, nil, "a"), ErrNoWinners)

	assert.Equal(t, []domain.WinnerTally{
		{NodeKey: "b", Votes: 2, TotalReward: 2},
		{NodeKey: "a", Votes: 1, TotalReward: 2},
	}, c.Tally(0))
	assert.Empty(t, c.Tally(1))
}

func TestLockstepCoordinator_ConcurrentSwarm(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	keys := []string{"alice", "bob", "carol"}
	dht := store.NewMemoryDHT()
	coord := NewLockstepCoordinator(keys, zap.NewNop())

	var nodes []*testNode
	for i, k := range keys {
		progress := NewCoordinatedProgress(coord, 5*time.Millisecond, 0, zap.NewNop())
		nodes = append(nodes, newTestNode(t, dht, k, int64(i+1), coord, progress))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		g.Go(func() error { return n.orch.Run(gctx) })
	}
	require.NoError(t, g.Wait())

	round, stage, err := coord.GetRoundAndStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, round)
	assert.Equal(t, domain.StageAnswer, stage)

	tally := coord.Tally(0)
	require.NotEmpty(t, tally)
	votes := 0
	for _, w := range tally {
		votes += w.Votes
	}
	assert.Equal(t, len(keys), votes)
}

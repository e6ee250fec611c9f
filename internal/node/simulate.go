package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/llm"
	"github.com/Harshitk-cp/swarm/internal/metrics"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SimulationConfig struct {
	Nodes int
	// Template supplies everything but the key and round count.
	Template Options
	Rounds   int
	// Registerer receives one collector per node when set.
	Registerer prometheus.Registerer
}

type SimulationResult struct {
	Keys        []string
	Tallies     map[int][]domain.WinnerTally
	Leaderboard map[int]map[string][]domain.RoundWinner
}

// Simulate runs cfg.Nodes nodes concurrently against one in-memory store.
// Stages advance in lockstep once every node has reported its reward.
func Simulate(ctx context.Context, cfg SimulationConfig, logger *zap.Logger) (*SimulationResult, error) {
	if cfg.Nodes <= 0 {
		return nil, fmt.Errorf("simulation needs at least one node, got %d", cfg.Nodes)
	}

	keys := make([]string, cfg.Nodes)
	for i := range keys {
		keys[i] = fmt.Sprintf("node-%02d", i)
	}

	dht := store.NewMemoryDHT()
	coord := service.NewLockstepCoordinator(keys, logger)

	nodes := make([]*Node, len(keys))
	for i, k := range keys {
		opts := cfg.Template
		opts.Key = k
		opts.MaxRounds = cfg.Rounds

		var observer service.Observer
		if cfg.Registerer != nil {
			observer = metrics.NewCollector(cfg.Registerer, k)
		}

		nodes[i] = New(opts, Deps{
			DHT:         dht,
			Generator:   llm.NewMockClient(int64(i + 1)),
			Coordinator: coord,
			Progress:    service.NewCoordinatedProgress(coord, opts.Discovery.CheckInterval, 0, logger),
			Observer:    observer,
		}, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		g.Go(func() error { return n.Orchestrator.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &SimulationResult{
		Keys:        keys,
		Tallies:     make(map[int][]domain.WinnerTally),
		Leaderboard: make(map[int]map[string][]domain.RoundWinner),
	}
	reader := store.NewDHTStageOutputStore(dht, domain.NewNodeState("simulation"), 0, 0)
	for r := 0; r < cfg.Rounds; r++ {
		res.Tallies[r] = coord.Tally(r)
		board, err := reader.FetchWinners(ctx, r)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("round %d leaderboard: %w", r, err)
		}
		res.Leaderboard[r] = board
	}
	return res, nil
}

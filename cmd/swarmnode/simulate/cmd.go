package simulate

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Harshitk-cp/swarm/cmd/swarmnode/nodeconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	NodesKey  = "nodes"
	RoundsKey = "rounds"

	simulatedCheckInterval = 20 * time.Millisecond
	simulatedWaitTimeout   = time.Second
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "simulate",
		Short: "Runs an in-process swarm against the in-memory store",
		RunE:  simulateFunc,
	}
	flags := c.Flags()
	nodeconfig.AddFlags(flags)
	flags.Int(NodesKey, 4, "Number of nodes")
	flags.Int(RoundsKey, 2, "Rounds each node finishes")
	return c
}

func simulateFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	cfg, err := nodeconfig.ParseFlags(flags)
	if err != nil {
		return err
	}
	nodes, err := flags.GetInt(NodesKey)
	if err != nil {
		return err
	}
	rounds, err := flags.GetInt(RoundsKey)
	if err != nil {
		return err
	}

	// Every peer is in-process, so poll far more often than over a network.
	if !flags.Changed(nodeconfig.CheckIntervalKey) {
		cfg.Options.Discovery.CheckInterval = simulatedCheckInterval
	}
	if !flags.Changed(nodeconfig.WaitTimeoutKey) {
		cfg.Options.Discovery.WaitTimeout = simulatedWaitTimeout
	}

	logger, err := config.NewLogger(config.LogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("simulation starting", zap.Int("nodes", nodes), zap.Int("rounds", rounds))
	res, err := node.Simulate(c.Context(), node.SimulationConfig{
		Nodes:      nodes,
		Rounds:     rounds,
		Template:   cfg.Options,
		Registerer: prometheus.NewRegistry(),
	}, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
	for r := 0; r < rounds; r++ {
		fmt.Fprintf(w, "round %d\n", r)
		fmt.Fprintln(w, "  node\tvotes\tcoordinator reward\tleaderboard reward")
		for _, t := range res.Tallies[r] {
			fmt.Fprintf(w, "  %s\t%d\t%d\t%.2f\n", t.NodeKey, t.Votes, t.TotalReward, leaderboardReward(res.Leaderboard[r], t.NodeKey))
		}
	}
	return w.Flush()
}

// leaderboardReward is the highest reward any publisher recorded for key.
func leaderboardReward(board map[string][]domain.RoundWinner, key string) float64 {
	best := 0.0
	for _, ws := range board {
		for _, w := range ws {
			if w.NodeKey == key && w.Reward > best {
				best = w.Reward
			}
		}
	}
	return best
}

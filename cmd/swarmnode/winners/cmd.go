package winners

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/Harshitk-cp/swarm/cmd/swarmnode/nodeconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/coordinator"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/node"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/spf13/cobra"
)

const RoundKey = "round"

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "winners",
		Short: "Computes a round's winners from the store without submitting them",
		RunE:  winnersFunc,
	}
	flags := c.Flags()
	nodeconfig.AddFlags(flags)
	flags.Int(RoundKey, 0, "Round to rank")
	_ = c.MarkFlagRequired(RoundKey)
	return c
}

func winnersFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	cfg, err := nodeconfig.ParseFlags(flags)
	if err != nil {
		return err
	}
	round, err := flags.GetInt(RoundKey)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(config.LogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	key, err := cfg.ResolveNodeKey()
	if err != nil {
		return err
	}

	ctx := c.Context()
	dht, release, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	opts := cfg.Options
	opts.Key = key
	n := node.New(opts, node.Deps{DHT: dht}, logger)

	ranked, err := n.Winners.Select(ctx, round)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "round %d winners\n", round)
	fmt.Fprintln(w, "  rank\tnode\treward")
	for i, rw := range ranked {
		fmt.Fprintf(w, "  %d\t%s\t%.2f\n", i+1, rw.NodeKey, rw.Reward)
	}

	board, err := n.Outputs.FetchWinners(ctx, round)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if len(board) > 0 {
		fmt.Fprintln(w, "published leaderboards")
		for _, publisher := range domain.SortedKeys(board) {
			fmt.Fprintf(w, "  %s\t%s\n", publisher, joinWinners(board[publisher]))
		}
	}

	if cfg.CoordinatorURL != "" {
		tally, err := coordinator.NewClient(cfg.CoordinatorURL, cfg.CoordinatorKey, logger).Winners(ctx, round)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "coordinator tally")
		fmt.Fprintln(w, "  node\tvotes\treward")
		for _, t := range tally {
			fmt.Fprintf(w, "  %s\t%d\t%d\n", t.NodeKey, t.Votes, t.TotalReward)
		}
	}
	return w.Flush()
}

func joinWinners(ws []domain.RoundWinner) string {
	s := ""
	for i, rw := range ws {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%.2f", rw.NodeKey, rw.Reward)
	}
	return s
}

package register

import (
	"errors"
	"fmt"

	"github.com/Harshitk-cp/swarm/cmd/swarmnode/nodeconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/coordinator"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "register",
		Short: "Registers this node with the coordinator and prints its API key",
		RunE:  registerFunc,
	}
	nodeconfig.AddFlags(c.Flags())
	return c
}

func registerFunc(c *cobra.Command, _ []string) error {
	cfg, err := nodeconfig.ParseFlags(c.Flags())
	if err != nil {
		return err
	}
	if cfg.CoordinatorURL == "" {
		return errors.New("--" + nodeconfig.CoordinatorURLKey + " is required")
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

	reg, err := coordinator.NewClient(cfg.CoordinatorURL, "", logger).Register(c.Context(), key)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "peer id:  %s\n", reg.ID)
	fmt.Fprintf(out, "node key: %s\n", reg.NodeKey)
	fmt.Fprintf(out, "api key:  %s\n", reg.APIKey)
	fmt.Fprintln(out, "Set COORDINATOR_API_KEY to the api key; it is not shown again.")
	return nil
}

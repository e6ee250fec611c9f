package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Harshitk-cp/swarm/cmd/swarmnode/register"
	"github.com/Harshitk-cp/swarm/cmd/swarmnode/run"
	"github.com/Harshitk-cp/swarm/cmd/swarmnode/simulate"
	"github.com/Harshitk-cp/swarm/cmd/swarmnode/winners"
	"github.com/Harshitk-cp/swarm/internal/buildconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	// Flag defaults read the environment, so load it first.
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "swarmnode",
		Short:        "Swarm training node",
		SilenceUsage: true,
	}
	root.AddCommand(
		run.Command(),
		simulate.Command(),
		winners.Command(),
		register.Command(),
		versionCommand(),
	)
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the build version",
		Run: func(c *cobra.Command, _ []string) {
			info := buildconfig.Get()
			fmt.Fprintf(c.OutOrStdout(), "swarmnode %s (%s, %s)\n", info.Version, info.Commit, info.GoVersion)
		},
	}
}

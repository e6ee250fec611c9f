package run

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/swarm/cmd/swarmnode/nodeconfig"
	"github.com/Harshitk-cp/swarm/internal/buildconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/coordinator"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/llm"
	"github.com/Harshitk-cp/swarm/internal/metrics"
	"github.com/Harshitk-cp/swarm/internal/node"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MaxRoundsKey   = "max-rounds"
	MetricsAddrKey = "metrics-addr"
	ProviderKey    = "provider"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs a swarm node",
		RunE:  runFunc,
	}
	flags := c.Flags()
	nodeconfig.AddFlags(flags)
	AddFlags(flags)
	return c
}

func AddFlags(flags *pflag.FlagSet) {
	flags.Int(MaxRoundsKey, config.MaxRounds(), "Rounds to finish before exiting; 0 runs until interrupted")
	flags.String(MetricsAddrKey, config.MetricsAddr(), "Prometheus listen address; empty disables it")
	flags.String(ProviderKey, config.LLMProvider(), "Completion provider (openai|anthropic|gemini|cerebras|mock)")
}

func runFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	cfg, err := nodeconfig.ParseFlags(flags)
	if err != nil {
		return err
	}
	maxRounds, err := flags.GetInt(MaxRoundsKey)
	if err != nil {
		return err
	}
	metricsAddr, err := flags.GetString(MetricsAddrKey)
	if err != nil {
		return err
	}
	provider, err := flags.GetString(ProviderKey)
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
		return fmt.Errorf("node identity: %w", err)
	}
	logger = logger.With(zap.String("node_key", key))

	generator, err := llm.NewGenerator(provider, config.ProviderAPIKey(provider))
	if err != nil {
		return err
	}

	ctx := c.Context()
	dht, release, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := cfg.Options
	opts.Key = key
	opts.MaxRounds = maxRounds
	deps := node.Deps{
		DHT:       dht,
		Generator: generator,
		Observer:  metrics.NewCollector(reg, key),
	}
	if cfg.CoordinatorURL != "" {
		client := coordinator.NewClient(cfg.CoordinatorURL, cfg.CoordinatorKey, logger)
		deps.Coordinator = client
		deps.Progress = service.NewCoordinatedProgress(client, opts.Discovery.CheckInterval, 0, logger)
	}
	n := node.New(opts, deps, logger)

	if es, ok := dht.(domain.ExpiringStore); ok {
		expirer := service.NewExpirerService(es, logger)
		expirer.Start()
		defer expirer.Stop()
	}

	logger.Info("swarm node starting",
		zap.String("version", buildconfig.Version()),
		zap.String("store", cfg.StoreBackend),
		zap.String("provider", provider),
		zap.Bool("coordinated", deps.Coordinator != nil),
		zap.Int("max_rounds", maxRounds))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The metrics server stops with the orchestrator.
		defer cancel()
		return n.Orchestrator.Run(gctx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return metrics.NewServer(metricsAddr, reg, logger).Run(gctx)
		})
	}

	if err := g.Wait(); service.IsFatal(err) {
		logger.Error("swarm node failed", zap.Error(err))
		return err
	}
	logger.Info("swarm node stopped")
	return nil
}

// Package nodeconfig holds the flags shared by the swarmnode commands.
package nodeconfig

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/identity"
	"github.com/Harshitk-cp/swarm/internal/node"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

const (
	NodeKeyKey        = "node-key"
	IdentityPathKey   = "identity"
	StoreBackendKey   = "store"
	DatabaseURLKey    = "database-url"
	SearchWidthKey    = "search-width"
	OutputTTLKey      = "output-ttl"
	CheckIntervalKey  = "check-interval"
	WaitTimeoutKey    = "wait-timeout"
	SampleLimitKey    = "sample-limit"
	WinnerLimitKey    = "winner-limit"
	GenerationsKey    = "generations"
	QuestionsKey      = "questions-per-round"
	DatasetKey        = "dataset"
	CoordinatorURLKey = "coordinator-url"
	CoordinatorKeyKey = "coordinator-api-key"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// AddFlags registers the flags every node-side command understands. Defaults
// come from the environment.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(NodeKeyKey, config.NodeKey(), "Node key; derived from the identity file when empty")
	flags.String(IdentityPathKey, config.IdentityPath(), "Path of the ed25519 identity seed")
	flags.String(StoreBackendKey, config.StoreBackend(), "Store backend (memory|postgres)")
	flags.String(DatabaseURLKey, config.DatabaseURL(), "Postgres URL for the postgres backend")
	flags.Int(SearchWidthKey, config.SearchWidth(), "Search width passed to store lookups")
	flags.Duration(OutputTTLKey, config.OutputTTL(), "Expiry of published stage outputs")
	flags.Duration(CheckIntervalKey, config.CheckInterval(), "Poll interval while waiting for peers")
	flags.Duration(WaitTimeoutKey, config.WaitTimeout(), "Longest wait for a reward signal")
	flags.Int(SampleLimitKey, config.DHTSampleLimit(), "Most remote peers read per stage")
	flags.Int(WinnerLimitKey, config.RoundWinnerLimit(), "Most winners kept per round")
	flags.Int(GenerationsKey, config.NumGenerations(), "Completions sampled per question")
	flags.Int(QuestionsKey, service.DefaultQuestionsPerRound, "Questions per round")
	flags.String(DatasetKey, config.DatasetPath(), "JSONL question file; the built-in set when empty")
	flags.String(CoordinatorURLKey, config.CoordinatorURL(), "Coordinator base URL; local progress when empty")
	flags.String(CoordinatorKeyKey, config.CoordinatorAPIKey(), "API key issued by the coordinator")
}

type Config struct {
	IdentityPath   string
	NodeKey        string
	StoreBackend   string
	DatabaseURL    string
	CoordinatorURL string
	CoordinatorKey string
	Options        node.Options
}

func ParseFlags(flags *pflag.FlagSet) (*Config, error) {
	var (
		cfg Config
		err error
	)
	get := func(key string, dst *string) {
		if err == nil {
			*dst, err = flags.GetString(key)
		}
	}
	getInt := func(key string, dst *int) {
		if err == nil {
			*dst, err = flags.GetInt(key)
		}
	}

	get(NodeKeyKey, &cfg.NodeKey)
	get(IdentityPathKey, &cfg.IdentityPath)
	get(StoreBackendKey, &cfg.StoreBackend)
	get(DatabaseURLKey, &cfg.DatabaseURL)
	get(CoordinatorURLKey, &cfg.CoordinatorURL)
	get(CoordinatorKeyKey, &cfg.CoordinatorKey)

	opts := &cfg.Options
	getInt(SearchWidthKey, &opts.SearchWidth)
	getInt(SampleLimitKey, &opts.Discovery.DHTSampleLimit)
	getInt(WinnerLimitKey, &opts.WinnerLimit)
	getInt(GenerationsKey, &opts.NumGenerations)
	getInt(QuestionsKey, &opts.QuestionsPerRound)
	if err == nil {
		opts.OutputTTL, err = flags.GetDuration(OutputTTLKey)
	}
	if err == nil {
		opts.Discovery.CheckInterval, err = flags.GetDuration(CheckIntervalKey)
	}
	if err == nil {
		opts.Discovery.WaitTimeout, err = flags.GetDuration(WaitTimeoutKey)
	}
	var dataset string
	get(DatasetKey, &dataset)
	if err != nil {
		return nil, err
	}

	if dataset != "" {
		opts.Questions, err = service.LoadJSONLQuestions(dataset)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("--%s is required for the %s backend", DatabaseURLKey, BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return &cfg, nil
}

// ResolveNodeKey returns the explicit node key, or the one derived from the
// identity file, creating the file on first use.
func (c *Config) ResolveNodeKey() (string, error) {
	if c.NodeKey != "" {
		return c.NodeKey, nil
	}
	id, err := identity.LoadOrCreate(c.IdentityPath)
	if err != nil {
		return "", err
	}
	c.NodeKey = id.NodeKey()
	return c.NodeKey, nil
}

// OpenStore opens the configured backend. The returned func releases it.
func (c *Config) OpenStore(ctx context.Context) (domain.DistributedStore, func(), error) {
	if c.StoreBackend != BackendPostgres {
		return store.NewMemoryDHT(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return store.NewPostgresDHT(pool), pool.Close, nil
}

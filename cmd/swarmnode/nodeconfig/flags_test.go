package nodeconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse(args))
	return ParseFlags(flags)
}

func TestParseFlags(t *testing.T) {
	cfg, err := parse(t,
		"--node-key", "alpha",
		"--store", "memory",
		"--check-interval", "250ms",
		"--wait-timeout", "2s",
		"--sample-limit", "7",
		"--winner-limit", "3",
		"--generations", "5",
		"--questions-per-round", "6",
	)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.NodeKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Options.Discovery.CheckInterval)
	assert.Equal(t, 2*time.Second, cfg.Options.Discovery.WaitTimeout)
	assert.Equal(t, 7, cfg.Options.Discovery.DHTSampleLimit)
	assert.Equal(t, 3, cfg.Options.WinnerLimit)
	assert.Equal(t, 5, cfg.Options.NumGenerations)
	assert.Equal(t, 6, cfg.Options.QuestionsPerRound)

	key, err := cfg.ResolveNodeKey()
	require.NoError(t, err)
	assert.Equal(t, "alpha", key)

	dht, release, err := cfg.OpenStore(context.Background())
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &store.MemoryDHT{}, dht)
}

func TestParseFlags_Invalid(t *testing.T) {
	_, err := parse(t, "--store", "redis")
	assert.Error(t, err)

	_, err = parse(t, "--store", "postgres", "--database-url", "")
	assert.Error(t, err)

	_, err = parse(t, "--dataset", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestParseFlags_Dataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"question":"1+1?","answer":"2"}`+"\n"), 0o600))

	cfg, err := parse(t, "--store", "memory", "--dataset", path)
	require.NoError(t, err)
	require.Len(t, cfg.Options.Questions, 1)
	assert.Equal(t, "2", cfg.Options.Questions[0].Answer)
}

func TestResolveNodeKey_Identity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	cfg, err := parse(t, "--store", "memory", "--node-key", "", "--identity", path)
	require.NoError(t, err)

	key, err := cfg.ResolveNodeKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	again, err := parse(t, "--store", "memory", "--node-key", "", "--identity", path)
	require.NoError(t, err)
	key2, err := again.ResolveNodeKey()
	require.NoError(t, err)
	assert.Equal(t, key, key2)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDiscovery_TimesOutWithLocalOnly(t *testing.T) {
	ctx := context.Background()
	dht := store.NewMemoryDHT()
	node := domain.NewNodeState("me")
	outputs := store.NewDHTStageOutputStore(dht, node, 0, 0)

	// Local copy exists only in the node cache; nobody has a reward signal.
	node.CacheOutputs(0, domain.StageAnswer, domain.StageOutputs{
		domain.QuestionHash("Q"): answerRecord(t, "Q", "42", map[string]string{"me": "42"}),
	})

	core, logs := observer.New(zapcore.InfoLevel)
	d := NewDiscovery(outputs, "me", DiscoveryConfig{
		CheckInterval: 50 * time.Millisecond,
		WaitTimeout:   100 * time.Millisecond,
	}, zap.New(core), nil)

	start := time.Now()
	grouped, err := d.Collect(ctx, 0, domain.StageAnswer)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	require.Len(t, grouped, 1)
	assert.Contains(t, grouped[domain.QuestionHash("Q")], "me")
	assert.Equal(t, 1, logs.FilterMessage("discovery wait timed out, proceeding with local outputs").Len())
}

func TestDiscovery_LateJoinerWithNothing(t *testing.T) {
	d := NewDiscovery(newOutputStore(store.NewMemoryDHT(), "late"), "late", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   20 * time.Millisecond,
	}, zap.NewNop(), nil)

	grouped, err := d.Collect(context.Background(), 5, domain.StageCritique)
	require.NoError(t, err)
	assert.Empty(t, grouped)
}

func TestDiscovery_CollectsPeers(t *testing.T) {
	ctx := context.Background()
	dht := store.NewMemoryDHT()
	qa, qb := domain.QuestionHash("QA"), domain.QuestionHash("QB")

	for _, key := range []string{"alice", "bob", "carol"} {
		s := newOutputStore(dht, key)
		outs := domain.StageOutputs{qa: answerRecord(t, "QA", "1", map[string]string{key: "x"})}
		if key == "bob" {
			outs[qb] = answerRecord(t, "QB", "2", map[string]string{key: "y"})
		}
		require.NoError(t, s.Publish(ctx, 1, domain.StageAnswer, key, outs, 1))
	}
	// dave claims to have published but his outputs never arrived.
	require.NoError(t, dht.Put(ctx, store.RewardsKey(1, domain.StageAnswer), "dave", []byte("1"), time.Time{}))

	d := NewDiscovery(newOutputStore(dht, "alice"), "alice", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   time.Second,
	}, zap.NewNop(), nil)

	grouped, err := d.Collect(ctx, 1, domain.StageAnswer)
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, domain.SortedKeys(grouped[qa]))
	assert.ElementsMatch(t, []string{"bob"}, domain.SortedKeys(grouped[qb]))
}

func TestDiscovery_SampleLimit(t *testing.T) {
	ctx := context.Background()
	dht := store.NewMemoryDHT()
	q := domain.QuestionHash("Q")
	for _, key := range []string{"me", "p1", "p2", "p3", "p4"} {
		s := newOutputStore(dht, key)
		require.NoError(t, s.Publish(ctx, 0, domain.StageAnswer, key,
			domain.StageOutputs{q: answerRecord(t, "Q", "1", map[string]string{key: "x"})}, 0))
	}

	d := NewDiscovery(newOutputStore(dht, "me"), "me", DiscoveryConfig{
		CheckInterval:  10 * time.Millisecond,
		WaitTimeout:    time.Second,
		DHTSampleLimit: 2,
	}, zap.NewNop(), nil)

	grouped, err := d.Collect(ctx, 0, domain.StageAnswer)
	require.NoError(t, err)
	// Own output plus the first two peers in key order.
	assert.Equal(t, []string{"me", "p1", "p2"}, domain.SortedKeys(grouped[q]))
}

func TestDiscovery_SignalArrivesDuringWait(t *testing.T) {
	ctx := context.Background()
	dht := store.NewMemoryDHT()
	outs := domain.StageOutputs{domain.QuestionHash("Q"): answerRecord(t, "Q", "1", map[string]string{"peer": "x"})}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(30 * time.Millisecond)
		_ = newOutputStore(dht, "peer").Publish(ctx, 2, domain.StageCritique, "peer", outs, 3)
	}()
	defer func() { <-done }()

	d := NewDiscovery(newOutputStore(dht, "me"), "me", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   2 * time.Second,
	}, zap.NewNop(), nil)

	signal, err := d.WaitForRewardSignal(ctx, 2, domain.StageCritique)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"peer": 3}, signal)
}

func TestDiscovery_StoreFailureIsFatal(t *testing.T) {
	boom := errors.New("store unreachable")
	outputs := store.NewDHTStageOutputStore(failingStore{err: boom}, domain.NewNodeState("me"), 0, 0)
	d := NewDiscovery(outputs, "me", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
	}, zap.NewNop(), nil)

	_, err := d.Collect(context.Background(), 0, domain.StageAnswer)
	assert.ErrorIs(t, err, boom)
}

func TestDiscovery_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDiscovery(newOutputStore(store.NewMemoryDHT(), "me"), "me", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   10 * time.Second,
	}, zap.NewNop(), nil)

	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := d.Collect(ctx, 0, domain.StageAnswer)
	assert.ErrorIs(t, err, context.Canceled)
}

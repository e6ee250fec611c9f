package service

import (
	"context"
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

func newTestSelector(t *testing.T, dht *store.MemoryDHT, key string, scorer domain.Scorer, limit int) *RoundWinnerSelector {
	t.Helper()
	d := NewDiscovery(newOutputStore(dht, key), key, DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
	}, zap.NewNop(), nil)
	return NewRoundWinnerSelector(d, scorer, limit, zap.NewNop(), nil)
}

func TestRoundWinnerSelector_FaultyNodesExcluded(t *testing.T) {
	ctx := context.Background()
	dht := store.NewMemoryDHT()
	q := domain.QuestionHash("Q")

	good := map[string]domain.Record{
		"node1": decisionRecord(t, "Q", "P3", map[string]string{"node1": "great"}),
		"node2": decisionRecord(t, "Q", "P3", map[string]string{"node2": "fine"}),
		"node3": record(t, `{"question":"Q","answer":"42","stage3_prompt":"P3","final_agent_decision":null}`),
		"node4": record(t, `{"question":"Q","answer":"42","stage3_prompt":"P3","final_agent_decision":null}`),
	}
	for key, rec := range good {
		require.NoError(t, newOutputStore(dht, key).Publish(ctx, 0, domain.StageConsensus, key, domain.StageOutputs{q: rec}, 1))
	}

	scorer := &fixedScorer{rewards: map[string]float64{"great": 3, "fine": 1}}
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDiscovery(newOutputStore(dht, "node1"), "node1", DiscoveryConfig{
		CheckInterval: 10 * time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
	}, zap.NewNop(), nil)
	sel := NewRoundWinnerSelector(d, scorer, 2, zap.New(core), nil)

	winners, err := sel.Select(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoundWinner{
		{NodeKey: "node1", Reward: 3},
		{NodeKey: "node2", Reward: 1},
	}, winners)

	// Faulty records are never scored.
	assert.Len(t, scorer.calls, 2)
	assert.Equal(t, 2, logs.FilterMessage("faulty final stage output").Len())
}

func TestRoundWinnerSelector_EmptyTextIsPresent(t *testing.T) {
	q := domain.QuestionHash("Q")
	grouped := Grouped{q: {
		"blank":   record(t, `{"question":"","answer":"42","stage3_prompt":"","final_agent_decision":{"blank":"great"}}`),
		"missing": record(t, `{"answer":"42","stage3_prompt":"P3","final_agent_decision":{"missing":"great"}}`),
	}}

	scorer := &fixedScorer{rewards: map[string]float64{"great": 2}}
	core, logs := observer.New(zapcore.WarnLevel)
	sel := NewRoundWinnerSelector(nil, scorer, 0, zap.New(core), nil)

	winners, err := sel.Rank(context.Background(), grouped)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoundWinner{{NodeKey: "blank", Reward: 2}}, winners)
	assert.Len(t, scorer.calls, 1)
	assert.Equal(t, 1, logs.FilterMessage("faulty final stage output").Len())
}

func TestRoundWinnerSelector_ScoringRequestShape(t *testing.T) {
	scorer := &fixedScorer{}
	sel := newTestSelector(t, store.NewMemoryDHT(), "me", scorer, 0)

	grouped := Grouped{
		"q": {"me": decisionRecord(t, "What is 6 times 7?", "stage three", map[string]string{"b": "second", "a": "first"})},
	}
	_, err := sel.Rank(context.Background(), grouped)
	require.NoError(t, err)

	require.Len(t, scorer.calls, 1)
	req := scorer.calls[0]
	assert.Equal(t, domain.StageConsensus, req.Stage)
	assert.Equal(t, []domain.Message{
		{Role: "system", Content: "What is 6 times 7?"},
		{Role: "system", Content: "stage three"},
	}, req.Prompt)
	// The decision under the smallest key is scored.
	assert.Equal(t, []string{"first"}, req.Completions)
	assert.Equal(t, "42", req.Answer)
}

func TestRoundWinnerSelector_LimitAndTies(t *testing.T) {
	scorer := &fixedScorer{rewards: map[string]float64{"x": 2, "y": 5}}
	sel := newTestSelector(t, store.NewMemoryDHT(), "me", scorer, 3)

	grouped := Grouped{
		"q1": {
			"delta": decisionRecord(t, "Q1", "P", map[string]string{"delta": "x"}),
			"alpha": decisionRecord(t, "Q1", "P", map[string]string{"alpha": "x"}),
			"bravo": decisionRecord(t, "Q1", "P", map[string]string{"bravo": "x"}),
			"echo":  decisionRecord(t, "Q1", "P", map[string]string{"echo": "y"}),
		},
	}
	winners, err := sel.Rank(context.Background(), grouped)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoundWinner{
		{NodeKey: "echo", Reward: 5},
		{NodeKey: "alpha", Reward: 2},
		{NodeKey: "bravo", Reward: 2},
	}, winners)
}

func TestRoundWinnerSelector_SumsAcrossQuestions(t *testing.T) {
	scorer := &fixedScorer{rewards: map[string]float64{"x": 1.5}}
	sel := newTestSelector(t, store.NewMemoryDHT(), "me", scorer, 0)

	grouped := Grouped{
		"q1": {"a": decisionRecord(t, "Q1", "P", map[string]string{"a": "x"})},
		"q2": {
			"a": decisionRecord(t, "Q2", "P", map[string]string{"a": "x"}),
			"b": decisionRecord(t, "Q2", "P", map[string]string{"b": "x"}),
		},
	}
	winners, err := sel.Rank(context.Background(), grouped)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoundWinner{
		{NodeKey: "a", Reward: 3},
		{NodeKey: "b", Reward: 1.5},
	}, winners)
}

func TestRoundWinnerSelector_AllZeroKeepsEveryone(t *testing.T) {
	sel := newTestSelector(t, store.NewMemoryDHT(), "me", &fixedScorer{}, 0)

	grouped := Grouped{
		"q": {
			"a": decisionRecord(t, "Q", "P", map[string]string{"a": "x"}),
			"b": record(t, `{"question":"Q"}`),
		},
	}
	winners, err := sel.Rank(context.Background(), grouped)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoundWinner{
		{NodeKey: "a", Reward: 0},
		{NodeKey: "b", Reward: 0},
	}, winners)
}

func TestRoundWinnerSelector_NoOutputs(t *testing.T) {
	sel := newTestSelector(t, store.NewMemoryDHT(), "me", &fixedScorer{}, 0)
	winners, err := sel.Select(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answerOutputs(t *testing.T, question, answer string) domain.StageOutputs {
	t.Helper()
	r, err := domain.AnswerOutput{Question: question, Answer: answer, AgentAnswers: map[string]string{"n": answer}}.Record()
	require.NoError(t, err)
	return domain.StageOutputs{domain.QuestionHash(question): r}
}

func TestStageOutputStore_PublishAndFetch(t *testing.T) {
	ctx := context.Background()
	dht := NewMemoryDHT()
	alice := NewDHTStageOutputStore(dht, domain.NewNodeState("alice"), 0, time.Hour)
	bob := NewDHTStageOutputStore(dht, domain.NewNodeState("bob"), 0, time.Hour)

	outs := answerOutputs(t, "Q1", "42")
	require.NoError(t, alice.Publish(ctx, 3, domain.StageAnswer, "alice", outs, 1.5))

	signal, err := bob.FetchRewardSignal(ctx, 3, domain.StageAnswer)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"alice": 1.5}, signal)

	got, err := bob.FetchRemote(ctx, 3, domain.StageAnswer, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	ans, err := domain.DecodeAnswerOutput(got[domain.QuestionHash("Q1")])
	require.NoError(t, err)
	assert.Equal(t, "42", ans.Answer)

	_, err = bob.FetchRemote(ctx, 3, domain.StageAnswer, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStageOutputStore_FetchRewardSignalEmpty(t *testing.T) {
	s := NewDHTStageOutputStore(NewMemoryDHT(), domain.NewNodeState("a"), 0, 0)
	signal, err := s.FetchRewardSignal(context.Background(), 0, domain.StageAnswer)
	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestStageOutputStore_FetchLocal(t *testing.T) {
	ctx := context.Background()
	dht := NewMemoryDHT()
	node := domain.NewNodeState("alice")
	s := NewDHTStageOutputStore(dht, node, 0, 0)

	_, err := s.FetchLocal(ctx, 0, domain.StageAnswer)
	assert.ErrorIs(t, err, ErrNotFound, "late joiner without a copy")

	require.NoError(t, s.Publish(ctx, 0, domain.StageAnswer, "alice", answerOutputs(t, "Q", "A"), 0))
	cached, ok := node.CachedOutputs(0, domain.StageAnswer)
	require.True(t, ok)
	assert.Len(t, cached, 1)

	// A restarted node has no cache but can read its own key back.
	restarted := NewDHTStageOutputStore(dht, domain.NewNodeState("alice"), 0, 0)
	got, err := restarted.FetchLocal(ctx, 0, domain.StageAnswer)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStageOutputStore_UndecodableValues(t *testing.T) {
	ctx := context.Background()
	dht := NewMemoryDHT()
	s := NewDHTStageOutputStore(dht, domain.NewNodeState("me"), 0, 0)

	require.NoError(t, dht.Put(ctx, OutputsKey(1, domain.StageCritique, "evil"), "h", []byte("not json"), time.Time{}))
	require.NoError(t, dht.Put(ctx, RewardsKey(1, domain.StageCritique), "evil", []byte(`"lots"`), time.Time{}))

	outs, err := s.FetchRemote(ctx, 1, domain.StageCritique, "evil")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{}, outs["h"])

	signal, err := s.FetchRewardSignal(ctx, 1, domain.StageCritique)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"evil": 0}, signal)
}

func TestStageOutputStore_Winners(t *testing.T) {
	ctx := context.Background()
	s := NewDHTStageOutputStore(NewMemoryDHT(), domain.NewNodeState("me"), 0, 0)

	_, err := s.FetchWinners(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	ws := []domain.RoundWinner{{NodeKey: "a", Reward: 3}, {NodeKey: "b", Reward: 1}}
	require.NoError(t, s.PublishWinners(ctx, 2, "me", ws))

	got, err := s.FetchWinners(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string][]domain.RoundWinner{"me": ws}, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "outputs_4_1_abc", OutputsKey(4, domain.StageCritique, "abc"))
	assert.Equal(t, "rewards_4_2", RewardsKey(4, domain.StageConsensus))
	assert.Equal(t, "leaderboard_7", LeaderboardKey(7))
}

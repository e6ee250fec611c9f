package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, s string) domain.Record {
	t.Helper()
	var r domain.Record
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func answerRecord(t *testing.T, question, answer string, agents map[string]string) domain.Record {
	t.Helper()
	r, err := domain.AnswerOutput{Question: question, Answer: answer, AgentAnswers: agents}.Record()
	require.NoError(t, err)
	return r
}

func decisionRecord(t *testing.T, question, prompt string, decisions map[string]string) domain.Record {
	t.Helper()
	r, err := domain.DecisionOutput{Question: question, Answer: "42", Stage3Prompt: prompt, FinalAgentDecision: decisions}.Record()
	require.NoError(t, err)
	return r
}

func newOutputStore(dht *store.MemoryDHT, key string) *store.DHTStageOutputStore {
	return store.NewDHTStageOutputStore(dht, domain.NewNodeState(key), 0, time.Hour)
}

// fixedScorer returns, for every completion, the reward listed for it; other
// completions score zero.
type fixedScorer struct {
	mu      sync.Mutex
	rewards map[string]float64
	calls   []domain.ScoringRequest
}

func (s *fixedScorer) Score(ctx context.Context, req domain.ScoringRequest) ([]domain.RewardBreakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	out := make([]domain.RewardBreakdown, len(req.Completions))
	for i, c := range req.Completions {
		out[i].Add("fixed", s.rewards[c])
	}
	return out, nil
}

// failingStore fails every read, standing in for an unreachable store.
type failingStore struct {
	err error
}

func (f failingStore) Put(context.Context, string, string, []byte, time.Time) error { return f.err }
func (f failingStore) Get(context.Context, string, int) (map[string][]byte, error) {
	return nil, f.err
}

type rewardCall struct {
	Round   int
	Stage   domain.Stage
	Reward  int
	NodeKey string
}

type winnersCall struct {
	Round   int
	Winners []string
	NodeKey string
}

// mockCoordinator serves a scripted sequence of positions; the last one
// repeats.
type mockCoordinator struct {
	mu         sync.Mutex
	positions  []domain.Progress
	getCalls   int
	getErr     error
	rewardErr  error
	winnersErr error
	rewards    []rewardCall
	winners    []winnersCall
}

func (m *mockCoordinator) GetRoundAndStage(ctx context.Context) (int, domain.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, 0, m.getErr
	}
	i := m.getCalls
	if i >= len(m.positions) {
		i = len(m.positions) - 1
	}
	m.getCalls++
	p := m.positions[i]
	return p.Round, p.Stage, nil
}

func (m *mockCoordinator) SubmitReward(ctx context.Context, round int, stage domain.Stage, reward int, nodeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards = append(m.rewards, rewardCall{round, stage, reward, nodeKey})
	return m.rewardErr
}

func (m *mockCoordinator) SubmitWinners(ctx context.Context, round int, winners []string, nodeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.winners = append(m.winners, winnersCall{round, winners, nodeKey})
	return m.winnersErr
}

// mockPeerStore implements domain.PeerStore for testing.
type mockPeerStore struct {
	peers map[string]*domain.Peer
}

func newMockPeerStore() *mockPeerStore {
	return &mockPeerStore{peers: make(map[string]*domain.Peer)}
}

func (m *mockPeerStore) Create(ctx context.Context, p *domain.Peer) error {
	if _, ok := m.peers[p.NodeKey]; ok {
		return store.ErrConflict
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.peers[p.NodeKey] = p
	return nil
}

func (m *mockPeerStore) GetByNodeKey(ctx context.Context, nodeKey string) (*domain.Peer, error) {
	p, ok := m.peers[nodeKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockPeerStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Peer, error) {
	for _, p := range m.peers {
		if p.APIKeyHash == hash {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockPeerStore) Count(ctx context.Context) (int, error) {
	return len(m.peers), nil
}

// mockRoundStore implements domain.RoundStore for testing.
type mockRoundStore struct {
	mu    sync.Mutex
	state *domain.RoundState
}

func newMockRoundStore(started time.Time) *mockRoundStore {
	return &mockRoundStore{state: &domain.RoundState{StageStartedAt: started}}
}

func (m *mockRoundStore) Get(ctx context.Context) (*domain.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, store.ErrNotFound
	}
	st := *m.state
	return &st, nil
}

func (m *mockRoundStore) Advance(ctx context.Context, expected, next domain.Progress) (*domain.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Progress() != expected {
		return nil, store.ErrConflict
	}
	m.state = &domain.RoundState{Round: next.Round, Stage: next.Stage, StageStartedAt: time.Now()}
	st := *m.state
	return &st, nil
}

// mockRewardStore implements domain.RewardStore for testing.
type mockRewardStore struct {
	subs []domain.RewardSubmission
}

func newMockRewardStore() *mockRewardStore {
	return &mockRewardStore{}
}

func (m *mockRewardStore) Create(ctx context.Context, s *domain.RewardSubmission) error {
	for _, existing := range m.subs {
		if existing.Round == s.Round && existing.Stage == s.Stage && existing.NodeKey == s.NodeKey {
			return store.ErrConflict
		}
	}
	s.ID = uuid.New()
	m.subs = append(m.subs, *s)
	return nil
}

func (m *mockRewardStore) ListByRound(ctx context.Context, round int) ([]domain.RewardSubmission, error) {
	var out []domain.RewardSubmission
	for _, s := range m.subs {
		if s.Round == round {
			out = append(out, s)
		}
	}
	return out, nil
}

// mockWinnerStore implements domain.WinnerStore for testing.
type mockWinnerStore struct {
	votes []domain.WinnerVote
}

func newMockWinnerStore() *mockWinnerStore {
	return &mockWinnerStore{}
}

func (m *mockWinnerStore) CreateVotes(ctx context.Context, votes []domain.WinnerVote) error {
	for _, v := range votes {
		for _, existing := range m.votes {
			if existing.Round == v.Round && existing.VoterKey == v.VoterKey {
				return store.ErrConflict
			}
		}
	}
	m.votes = append(m.votes, votes...)
	return nil
}

func (m *mockWinnerStore) Tally(ctx context.Context, round int) ([]domain.WinnerTally, error) {
	counts := make(map[string]int)
	for _, v := range m.votes {
		if v.Round == round {
			counts[v.WinnerKey]++
		}
	}
	var out []domain.WinnerTally
	for _, k := range domain.SortedKeys(counts) {
		out = append(out, domain.WinnerTally{NodeKey: k, Votes: counts[k]})
	}
	return out, nil
}

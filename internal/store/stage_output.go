package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const DefaultSearchWidth = 100

// OutputsKey addresses one node's outputs for (round, stage). Subkeys are
// question hashes.
func OutputsKey(round int, stage domain.Stage, nodeKey string) string {
	return fmt.Sprintf("outputs_%d_%d_%s", round, int(stage), nodeKey)
}

// RewardsKey addresses the reward signal for (round, stage). Subkeys are
// node keys.
func RewardsKey(round int, stage domain.Stage) string {
	return fmt.Sprintf("rewards_%d_%d", round, int(stage))
}

// LeaderboardKey addresses the winner lists published for a round. Subkeys
// are the publishing node keys.
func LeaderboardKey(round int) string {
	return fmt.Sprintf("leaderboard_%d", round)
}

type outputEnvelope struct {
	PublishedAt time.Time       `json:"published_at"`
	Output      json.RawMessage `json:"output"`
}

// DHTStageOutputStore layers the key conventions over a DistributedStore on
// behalf of one node.
type DHTStageOutputStore struct {
	dht         domain.DistributedStore
	node        *domain.NodeState
	searchWidth int
	ttl         time.Duration
	now         func() time.Time
}

func NewDHTStageOutputStore(dht domain.DistributedStore, node *domain.NodeState, searchWidth int, ttl time.Duration) *DHTStageOutputStore {
	if searchWidth <= 0 {
		searchWidth = DefaultSearchWidth
	}
	return &DHTStageOutputStore{
		dht:         dht,
		node:        node,
		searchWidth: searchWidth,
		ttl:         ttl,
		now:         time.Now,
	}
}

func (s *DHTStageOutputStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

// Publish writes every per-question output under the node's outputs key,
// then adds the node to the reward signal. Outputs go first so a reader that
// sees the signal can usually find the data.
func (s *DHTStageOutputStore) Publish(ctx context.Context, round int, stage domain.Stage, nodeKey string, outputs domain.StageOutputs, reward float64) error {
	exp := s.expiry()
	key := OutputsKey(round, stage, nodeKey)

	for _, qHash := range outputs.QuestionHashes() {
		raw, err := json.Marshal(outputs[qHash])
		if err != nil {
			return fmt.Errorf("encode output %s: %w", qHash, err)
		}
		env, err := json.Marshal(outputEnvelope{PublishedAt: s.now().UTC(), Output: raw})
		if err != nil {
			return err
		}
		if err := s.dht.Put(ctx, key, qHash, env, exp); err != nil {
			return fmt.Errorf("put %s/%s: %w", key, qHash, err)
		}
	}

	rv, err := json.Marshal(reward)
	if err != nil {
		return err
	}
	if err := s.dht.Put(ctx, RewardsKey(round, stage), nodeKey, rv, exp); err != nil {
		return fmt.Errorf("put reward signal: %w", err)
	}

	if nodeKey == s.node.Key {
		s.node.CacheOutputs(round, stage, outputs)
	}
	return nil
}

// FetchLocal returns this node's own outputs, preferring the in-process
// cache. ErrNotFound means the node has no copy, e.g. it joined late.
func (s *DHTStageOutputStore) FetchLocal(ctx context.Context, round int, stage domain.Stage) (domain.StageOutputs, error) {
	if outs, ok := s.node.CachedOutputs(round, stage); ok {
		return outs, nil
	}
	return s.FetchRemote(ctx, round, stage, s.node.Key)
}

// FetchRemote returns a peer's outputs. Values that do not decode into an
// object are returned as empty records so the peer still counts as a
// participant when merged.
func (s *DHTStageOutputStore) FetchRemote(ctx context.Context, round int, stage domain.Stage, nodeKey string) (domain.StageOutputs, error) {
	raw, err := s.dht.Get(ctx, OutputsKey(round, stage, nodeKey), s.searchWidth)
	if err != nil {
		return nil, err
	}

	outs := make(domain.StageOutputs, len(raw))
	for qHash, v := range raw {
		var env outputEnvelope
		var rec domain.Record
		if err := json.Unmarshal(v, &env); err != nil || json.Unmarshal(env.Output, &rec) != nil || rec == nil {
			rec = domain.Record{}
		}
		outs[qHash] = rec
	}
	return outs, nil
}

// FetchRewardSignal returns node key to reward for (round, stage), or nil if
// nobody has published. Entries whose value is not a number are reported as
// zero; presence is what matters for discovery.
func (s *DHTStageOutputStore) FetchRewardSignal(ctx context.Context, round int, stage domain.Stage) (map[string]float64, error) {
	raw, err := s.dht.Get(ctx, RewardsKey(round, stage), s.searchWidth)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	signal := make(map[string]float64, len(raw))
	for nodeKey, v := range raw {
		var r float64
		if err := json.Unmarshal(v, &r); err != nil {
			r = 0
		}
		signal[nodeKey] = r
	}
	return signal, nil
}

func (s *DHTStageOutputStore) PublishWinners(ctx context.Context, round int, nodeKey string, winners []domain.RoundWinner) error {
	v, err := json.Marshal(winners)
	if err != nil {
		return err
	}
	return s.dht.Put(ctx, LeaderboardKey(round), nodeKey, v, s.expiry())
}

// FetchWinners returns every published winner list for round keyed by the
// publishing node. Lists that fail to decode are dropped.
func (s *DHTStageOutputStore) FetchWinners(ctx context.Context, round int) (map[string][]domain.RoundWinner, error) {
	raw, err := s.dht.Get(ctx, LeaderboardKey(round), s.searchWidth)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.RoundWinner, len(raw))
	for publisher, v := range raw {
		var ws []domain.RoundWinner
		if err := json.Unmarshal(v, &ws); err != nil {
			continue
		}
		out[publisher] = ws
	}
	return out, nil
}

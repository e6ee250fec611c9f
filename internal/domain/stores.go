package domain

import (
	"context"
	"errors"
	"time"
)

// DistributedStore is the shared key-value substrate. A key holds a set of
// subkeyed values; writers own disjoint subkeys. Get returns store.ErrNotFound
// when nothing is visible under key.
type DistributedStore interface {
	Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error
	Get(ctx context.Context, key string, searchWidth int) (map[string][]byte, error)
}

// StageOutputStore publishes and retrieves per-(round, stage) outputs and
// reward signals.
type StageOutputStore interface {
	Publish(ctx context.Context, round int, stage Stage, nodeKey string, outputs StageOutputs, reward float64) error
	FetchLocal(ctx context.Context, round int, stage Stage) (StageOutputs, error)
	FetchRemote(ctx context.Context, round int, stage Stage, nodeKey string) (StageOutputs, error)
	// FetchRewardSignal returns nil, nil when no node has published yet.
	FetchRewardSignal(ctx context.Context, round int, stage Stage) (map[string]float64, error)
	PublishWinners(ctx context.Context, round int, nodeKey string, winners []RoundWinner) error
	FetchWinners(ctx context.Context, round int) (map[string][]RoundWinner, error)
}

// Coordinator is the optional external round authority.
// ErrSubmissionRejected is matched by coordinator errors that refuse a
// reward or winner submission as late or repeated.
var ErrSubmissionRejected = errors.New("submission rejected by coordinator")

type Coordinator interface {
	GetRoundAndStage(ctx context.Context) (int, Stage, error)
	SubmitReward(ctx context.Context, round int, stage Stage, reward int, nodeKey string) error
	SubmitWinners(ctx context.Context, round int, winners []string, nodeKey string) error
}

type PeerStore interface {
	Create(ctx context.Context, p *Peer) error
	GetByNodeKey(ctx context.Context, nodeKey string) (*Peer, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Peer, error)
	Count(ctx context.Context) (int, error)
}

type RoundStore interface {
	Get(ctx context.Context) (*RoundState, error)
	// Advance moves from the expected position to next. It returns
	// store.ErrConflict if the stored position is no longer expected.
	Advance(ctx context.Context, expected, next Progress) (*RoundState, error)
}

type RewardStore interface {
	Create(ctx context.Context, s *RewardSubmission) error
	ListByRound(ctx context.Context, round int) ([]RewardSubmission, error)
}

type WinnerStore interface {
	CreateVotes(ctx context.Context, votes []WinnerVote) error
	Tally(ctx context.Context, round int) ([]WinnerTally, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExpiringStore is implemented by DistributedStore backends that can drop
// entries past their expiry.
type ExpiringStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

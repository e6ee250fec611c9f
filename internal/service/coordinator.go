package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/store"
	"go.uber.org/zap"
)

var (
	ErrPeerConflict      = errors.New("node key is already registered")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrNodeKeyMissing    = errors.New("node_key is required")
	ErrNodeKeyMismatch   = errors.New("node_key does not match the authenticated peer")
	ErrStaleRound        = errors.New("submission is not for the current round")
	ErrInvalidStage      = errors.New("stage must be 0, 1 or 2")
	ErrInvalidReward     = errors.New("reward must not be negative")
	ErrDuplicateReward   = errors.New("reward already submitted for this stage")
	ErrNoWinners         = errors.New("winners must not be empty")
	ErrDuplicateWinners  = errors.New("winners already submitted for this round")
	ErrAdvanceConflict   = errors.New("round state changed concurrently")
	ErrRoundStateMissing = errors.New("round state has not been initialised")
)

// CoordinatorService is the authority for round and stage progression and
// the sink for reward and winner submissions.
type CoordinatorService struct {
	peers   domain.PeerStore
	rounds  domain.RoundStore
	rewards domain.RewardStore
	winners domain.WinnerStore
	logger  *zap.Logger
}

func NewCoordinatorService(peers domain.PeerStore, rounds domain.RoundStore, rewards domain.RewardStore, winners domain.WinnerStore, logger *zap.Logger) *CoordinatorService {
	return &CoordinatorService{
		peers:   peers,
		rounds:  rounds,
		rewards: rewards,
		winners: winners,
		logger:  logger,
	}
}

// Register creates a peer for nodeKey. The caller generates the API key and
// passes only its hash.
func (s *CoordinatorService) Register(ctx context.Context, nodeKey, apiKeyHash string) (*domain.Peer, error) {
	if nodeKey == "" {
		return nil, ErrNodeKeyMissing
	}
	p := &domain.Peer{NodeKey: nodeKey, APIKeyHash: apiKeyHash}
	if err := s.peers.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrPeerConflict
		}
		return nil, err
	}
	s.logger.Info("peer registered", zap.String("node_key", nodeKey), zap.String("peer_id", p.ID.String()))
	return p, nil
}

func (s *CoordinatorService) Current(ctx context.Context) (*domain.RoundState, error) {
	st, err := s.rounds.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoundStateMissing
		}
		return nil, err
	}
	return st, nil
}

// Advance moves the swarm to the next stage, rolling over to the next round
// after the consensus stage.
func (s *CoordinatorService) Advance(ctx context.Context) (*domain.RoundState, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.advanceFrom(ctx, cur.Progress())
}

func (s *CoordinatorService) advanceFrom(ctx context.Context, from domain.Progress) (*domain.RoundState, error) {
	next, err := s.rounds.Advance(ctx, from, from.Next())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAdvanceConflict
		}
		return nil, err
	}
	s.logger.Info("stage advanced",
		zap.Int("round", next.Round),
		zap.String("stage", next.Stage.String()))
	return next, nil
}

// AdvanceIfDue advances when the current stage has run for at least d. It
// reports whether an advance happened.
func (s *CoordinatorService) AdvanceIfDue(ctx context.Context, d time.Duration, now time.Time) (bool, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return false, err
	}
	if now.Sub(cur.StageStartedAt) < d {
		return false, nil
	}
	if _, err := s.advanceFrom(ctx, cur.Progress()); err != nil {
		if errors.Is(err, ErrAdvanceConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SubmitReward accepts a reward for the current round at a stage the swarm
// has already reached.
func (s *CoordinatorService) SubmitReward(ctx context.Context, peer *domain.Peer, sub *domain.RewardSubmission) error {
	if sub.NodeKey != peer.NodeKey {
		return ErrNodeKeyMismatch
	}
	if !domain.ValidStage(int(sub.Stage)) {
		return ErrInvalidStage
	}
	if sub.Reward < 0 {
		return ErrInvalidReward
	}

	cur, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if sub.Round != cur.Round || sub.Stage > cur.Stage {
		return ErrStaleRound
	}

	if err := s.rewards.Create(ctx, sub); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateReward
		}
		return err
	}
	return nil
}

// SubmitWinners records a peer's winner announcement for round. Only the
// first winner counts. The round may be the current one or the one just
// closed, since nodes finish selection after the stage ticker rolls over.
func (s *CoordinatorService) SubmitWinners(ctx context.Context, peer *domain.Peer, round int, winners []string, nodeKey string) error {
	if nodeKey != peer.NodeKey {
		return ErrNodeKeyMismatch
	}
	if len(winners) == 0 || winners[0] == "" {
		return ErrNoWinners
	}

	cur, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if round != cur.Round && round != cur.Round-1 {
		return ErrStaleRound
	}

	votes := []domain.WinnerVote{{Round: round, VoterKey: nodeKey, WinnerKey: winners[0]}}
	if err := s.winners.CreateVotes(ctx, votes); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateWinners
		}
		return err
	}
	return nil
}

func (s *CoordinatorService) Winners(ctx context.Context, round int) ([]domain.WinnerTally, error) {
	return s.winners.Tally(ctx, round)
}

// Authenticate resolves an API key hash to its peer.
func (s *CoordinatorService) Authenticate(ctx context.Context, apiKeyHash string) (*domain.Peer, error) {
	p, err := s.peers.GetByAPIKeyHash(ctx, apiKeyHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPeerNotFound
		}
		return nil, err
	}
	return p, nil
}

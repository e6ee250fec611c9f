package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoundStore persists the coordinator's single (round, stage) row.
type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

func (s *RoundStore) Get(ctx context.Context) (*domain.RoundState, error) {
	st := &domain.RoundState{}
	err := s.db.QueryRow(ctx,
		`SELECT round, stage, stage_started_at FROM round_state WHERE id = 1`,
	).Scan(&st.Round, &st.Stage, &st.StageStartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// Advance is a compare-and-set on the position so that concurrent tickers
// and admin calls cannot skip a stage.
func (s *RoundStore) Advance(ctx context.Context, expected, next domain.Progress) (*domain.RoundState, error) {
	st := &domain.RoundState{}
	err := s.db.QueryRow(ctx,
		`UPDATE round_state
		 SET round = $3, stage = $4, stage_started_at = NOW()
		 WHERE id = 1 AND round = $1 AND stage = $2
		 RETURNING round, stage, stage_started_at`,
		expected.Round, int(expected.Stage), next.Round, int(next.Stage),
	).Scan(&st.Round, &st.Stage, &st.StageStartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return st, nil
}

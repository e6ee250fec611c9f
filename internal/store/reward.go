package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RewardStore struct {
	db *pgxpool.Pool
}

func NewRewardStore(db *pgxpool.Pool) *RewardStore {
	return &RewardStore{db: db}
}

// Create stores a submission. A second submission from the same node for the
// same (round, stage) returns ErrConflict.
func (s *RewardStore) Create(ctx context.Context, r *domain.RewardSubmission) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO reward_submissions (round, stage, node_key, reward)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, submitted_at`,
		r.Round, int(r.Stage), r.NodeKey, r.Reward,
	).Scan(&r.ID, &r.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *RewardStore) ListByRound(ctx context.Context, round int) ([]domain.RewardSubmission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, round, stage, node_key, reward, submitted_at
		 FROM reward_submissions WHERE round = $1
		 ORDER BY stage, node_key`,
		round,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.RewardSubmission
	for rows.Next() {
		var r domain.RewardSubmission
		if err := rows.Scan(&r.ID, &r.Round, &r.Stage, &r.NodeKey, &r.Reward, &r.SubmittedAt); err != nil {
			return nil, err
		}
		subs = append(subs, r)
	}
	return subs, rows.Err()
}

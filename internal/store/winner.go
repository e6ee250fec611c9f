package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WinnerStore struct {
	db *pgxpool.Pool
}

func NewWinnerStore(db *pgxpool.Pool) *WinnerStore {
	return &WinnerStore{db: db}
}

// CreateVotes records all votes of one announcement atomically. A voter that
// already voted for the round gets ErrConflict.
func (s *WinnerStore) CreateVotes(ctx context.Context, votes []domain.WinnerVote) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range votes {
		v := &votes[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO winner_votes (round, voter_key, winner_key)
			 VALUES ($1, $2, $3)
			 RETURNING created_at`,
			v.Round, v.VoterKey, v.WinnerKey,
		).Scan(&v.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrConflict
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

// Tally counts votes per winner for round and joins the winner's summed
// submitted reward for that round.
func (s *WinnerStore) Tally(ctx context.Context, round int) ([]domain.WinnerTally, error) {
	rows, err := s.db.Query(ctx,
		`SELECT v.winner_key, COUNT(*) AS votes,
		        COALESCE((SELECT SUM(r.reward) FROM reward_submissions r
		                  WHERE r.round = v.round AND r.node_key = v.winner_key), 0) AS total_reward
		 FROM winner_votes v
		 WHERE v.round = $1
		 GROUP BY v.round, v.winner_key
		 ORDER BY votes DESC, total_reward DESC, v.winner_key`,
		round,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tallies []domain.WinnerTally
	for rows.Next() {
		var t domain.WinnerTally
		if err := rows.Scan(&t.NodeKey, &t.Votes, &t.TotalReward); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDHT backs the DistributedStore with a single shared table so that
// nodes on different hosts can exchange outputs. Reads ignore searchWidth;
// a table lookup either sees a row or it does not.
type PostgresDHT struct {
	db *pgxpool.Pool
}

func NewPostgresDHT(db *pgxpool.Pool) *PostgresDHT {
	return &PostgresDHT{db: db}
}

func (s *PostgresDHT) Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error {
	var exp *time.Time
	if !expiresAt.IsZero() {
		exp = &expiresAt
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO dht_entries (key, subkey, value, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key, subkey) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, subkey, value, exp,
	)
	return err
}

func (s *PostgresDHT) Get(ctx context.Context, key string, searchWidth int) (map[string][]byte, error) {
	rows, err := s.db.Query(ctx,
		`SELECT subkey, value FROM dht_entries
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var subkey string
		var value []byte
		if err := rows.Scan(&subkey, &value); err != nil {
			return nil, err
		}
		out[subkey] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *PostgresDHT) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM dht_entries WHERE expires_at IS NOT NULL AND expires_at <= NOW()`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

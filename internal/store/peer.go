package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PeerStore struct {
	db *pgxpool.Pool
}

func NewPeerStore(db *pgxpool.Pool) *PeerStore {
	return &PeerStore{db: db}
}

func (s *PeerStore) Create(ctx context.Context, p *domain.Peer) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO peers (node_key, api_key_hash) VALUES ($1, $2)
		 RETURNING id, created_at`,
		p.NodeKey, p.APIKeyHash,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *PeerStore) GetByNodeKey(ctx context.Context, nodeKey string) (*domain.Peer, error) {
	return s.getOne(ctx,
		`SELECT id, node_key, api_key_hash, created_at FROM peers WHERE node_key = $1`,
		nodeKey)
}

func (s *PeerStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Peer, error) {
	return s.getOne(ctx,
		`SELECT id, node_key, api_key_hash, created_at FROM peers WHERE api_key_hash = $1`,
		apiKeyHash)
}

func (s *PeerStore) getOne(ctx context.Context, query string, arg any) (*domain.Peer, error) {
	p := &domain.Peer{}
	err := s.db.QueryRow(ctx, query, arg).Scan(&p.ID, &p.NodeKey, &p.APIKeyHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PeerStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM peers`).Scan(&n)
	return n, err
}

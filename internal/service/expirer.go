package service

import (
	"context"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"go.uber.org/zap"
)

const defaultExpirerInterval = 10 * time.Minute

// ExpirerService drops store entries past their expiry so old rounds do not
// accumulate.
type ExpirerService struct {
	periodic
	store domain.ExpiringStore
}

func NewExpirerService(s domain.ExpiringStore, logger *zap.Logger) *ExpirerService {
	e := &ExpirerService{store: s}
	e.periodic = periodic{
		name:     "store expirer",
		interval: defaultExpirerInterval,
		timeout:  30 * time.Second,
		fn:       e.run,
		logger:   logger,
	}
	return e
}

func (s *ExpirerService) run(ctx context.Context) {
	deleted, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to delete expired entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("deleted expired entries", zap.Int64("count", deleted))
	}
}

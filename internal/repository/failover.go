package repository

import (
	"context"
	"sync"
	"time"

	"cliquesaude/internal/domain"
	"cliquesaude/internal/models"

	"github.com/rs/zerolog"
)

// How long to keep serving from the fallback before probing primary again.
const recoveryProbeInterval = time.Minute

// FailoverSessionRepository serves from primary (Redis) until it errors,
// then falls back to the in-memory store and probes primary for recovery.
type FailoverSessionRepository struct {
	primary  domain.SessionRepository
	fallback domain.SessionRepository
	logger   *zerolog.Logger

	mu        sync.Mutex
	down      bool
	lastCheck time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// primaryUsable reports whether the next call should try primary. While
// primary is down it returns true once per probe interval, stamping
// lastCheck so concurrent callers do not all probe at once.
func (r *FailoverSessionRepository) primaryUsable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		return true
	}
	if time.Since(r.lastCheck) > recoveryProbeInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to memory")
	}
	r.down = true
	r.lastCheck = time.Now()
}

func (r *FailoverSessionRepository) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		r.logger.Info().Msg("Primary session repository recovered")
	}
	r.down = false
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, subjectID string) (*models.SessionContext, error) {
	if r.primaryUsable() {
		session, err := r.primary.GetSession(ctx, subjectID)
		if err == nil {
			r.markUp()
			return session, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetSession(ctx, subjectID)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.SessionContext) error {
	if r.primaryUsable() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionRepository) ClearSession(ctx context.Context, subjectID string) error {
	if r.primaryUsable() {
		err := r.primary.ClearSession(ctx, subjectID)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearSession(ctx, subjectID)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, subjectID string, limit int, window time.Duration) (bool, error) {
	if r.primaryUsable() {
		allowed, err := r.primary.CheckRateLimit(ctx, subjectID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, subjectID, limit, window)
}

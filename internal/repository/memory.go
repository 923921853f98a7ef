package repository

import (
	"context"
	"sync"
	"time"

	"cliquesaude/internal/models"
)

type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, subjectID string) (*models.SessionContext, error) {
	val, ok := r.sessions.Load(subjectID)
	if !ok {
		return nil, nil
	}
	return val.(*models.SessionContext), nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, session *models.SessionContext) error {
	r.sessions.Store(session.SubjectID, session)
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, subjectID string) error {
	r.sessions.Delete(subjectID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, subjectID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(subjectID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(subjectID, entry)
	return entry.count <= limit, nil
}

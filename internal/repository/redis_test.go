package repository

import (
	"context"
	"testing"
	"time"

	"cliquesaude/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisRepo(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionRepository(client, time.Hour), mr
}

func TestRedisSessionRoundTrip(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	session := &models.SessionContext{
		SubjectID: "subj-1",
		Role:      models.RoleAdmin,
		Verified:  true,
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.SetSession(ctx, session))

	got, err := repo.GetSession(ctx, "subj-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.SubjectID, got.SubjectID)
	assert.Equal(t, session.Role, got.Role)
	assert.True(t, got.Verified)
}

func TestRedisSessionMissing(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	got, err := repo.GetSession(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionClear(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.SessionContext{SubjectID: "subj-1"}))
	require.NoError(t, repo.ClearSession(ctx, "subj-1"))

	got, err := repo.GetSession(ctx, "subj-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionTTL(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.SessionContext{SubjectID: "subj-1"}))
	mr.FastForward(2 * time.Hour)

	got, err := repo.GetSession(ctx, "subj-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisRateLimit(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "subj-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := repo.CheckRateLimit(ctx, "subj-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window expiry resets the counter.
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, "subj-1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimitPerSubject(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "subj-1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "subj-1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "subj-2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

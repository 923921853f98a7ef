package database

import (
	"context"
	"testing"
	"time"

	"cliquesaude/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:      models.TaskUpsert,
		AppointmentID: "a1",
		Payload:       `{"appointment_id":"a1"}`,
		Status:        "pending",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NotZero(t, task.ID)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.TaskUpsert, pending[0].TaskType)
	assert.Equal(t, "a1", pending[0].AppointmentID)

	t.Run("RetryIncrementsCountAndDefers", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retry", "sheets unavailable", &future))

		// Deferred into the future, so not pending yet.
		pending, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		past := time.Now().Add(-time.Minute)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retry", "sheets unavailable", &past))

		pending, err = db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 2, pending[0].RetryCount)
		assert.Equal(t, "sheets unavailable", pending[0].LastError)
	})

	t.Run("CompletedLeavesQueue", func(t *testing.T) {
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil))

		pending, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

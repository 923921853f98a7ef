package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"cliquesaude/internal/database"
	"cliquesaude/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeSheets struct {
	upserts  []string
	deletes  []string
	statuses map[string]string
	err      error
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{statuses: make(map[string]string)}
}

func (f *fakeSheets) UpsertAppointment(ctx context.Context, appointment *models.AppointmentAggregate) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, appointment.ID)
	return nil
}

func (f *fakeSheets) DeleteAppointmentRow(ctx context.Context, appointmentID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, appointmentID)
	return nil
}

func (f *fakeSheets) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	if f.err != nil {
		return f.err
	}
	f.statuses[appointmentID] = status
	return nil
}

func newTestWorker(t *testing.T, sheets *fakeSheets, redisClient *redis.Client) (*SyncWorker, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	w := NewSyncWorker(db, sheets, redisClient, RetryPolicy{MaxRetries: 3}, &logger)
	return w, db
}

func testAggregate(id string) *models.AppointmentAggregate {
	return &models.AppointmentAggregate{
		Appointment: models.Appointment{
			ID:            id,
			PatientName:   "Maria Silva",
			PatientEmail:  "maria@example.com",
			Status:        models.StatusConfirmed,
			PaymentStatus: models.PaymentPaid,
			TotalCents:    15000,
		},
	}
}

func taskStatus(t *testing.T, db *database.DB, taskID int64) (status string, retryCount int) {
	t.Helper()
	err := db.QueryRow("SELECT status, retry_count FROM sync_queue WHERE id = ?", taskID).
		Scan(&status, &retryCount)
	if err != nil {
		t.Fatalf("query task: %v", err)
	}
	return status, retryCount
}

func TestEnqueueTaskPersistsAndQueues(t *testing.T) {
	w, db := newTestWorker(t, newFakeSheets(), nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskUpsert, "", testAggregate("a1"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(tasks))
	}
	if tasks[0].AppointmentID != "a1" {
		t.Errorf("appointment id = %q, want a1", tasks[0].AppointmentID)
	}

	if _, ok := w.tryLocalQueue(); !ok {
		t.Error("expected task on the local queue")
	}
}

func TestEnqueueTaskValidation(t *testing.T) {
	w, _ := newTestWorker(t, newFakeSheets(), nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, "", "a1", nil, ""); err == nil {
		t.Error("expected error for empty task type")
	}
	if err := w.EnqueueTask(ctx, models.TaskDelete, "", nil, ""); err == nil {
		t.Error("expected error for missing appointment")
	}
}

func TestProcessTaskUpsert(t *testing.T) {
	sheets := newFakeSheets()
	w, db := newTestWorker(t, sheets, nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskUpsert, "", testAggregate("a1"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatal("expected queued task")
	}
	w.processTask(ctx, &task)

	if len(sheets.upserts) != 1 || sheets.upserts[0] != "a1" {
		t.Errorf("upserts = %v, want [a1]", sheets.upserts)
	}

	status, _ := taskStatus(t, db, task.ID)
	if status != "completed" {
		t.Errorf("task status = %q, want completed", status)
	}
}

func TestProcessTaskDeleteAndStatus(t *testing.T) {
	sheets := newFakeSheets()
	w, _ := newTestWorker(t, sheets, nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskDelete, "a1", nil, ""); err != nil {
		t.Fatalf("enqueue delete: %v", err)
	}
	if err := w.EnqueueTask(ctx, models.TaskUpdateStatus, "a2", nil, models.StatusCancelled); err != nil {
		t.Fatalf("enqueue status: %v", err)
	}

	for {
		task, ok := w.tryLocalQueue()
		if !ok {
			break
		}
		w.processTask(ctx, &task)
	}

	if len(sheets.deletes) != 1 || sheets.deletes[0] != "a1" {
		t.Errorf("deletes = %v, want [a1]", sheets.deletes)
	}
	if sheets.statuses["a2"] != models.StatusCancelled {
		t.Errorf("status for a2 = %q, want cancelled", sheets.statuses["a2"])
	}
}

func TestProcessTaskSchedulesRetry(t *testing.T) {
	sheets := newFakeSheets()
	sheets.err = errors.New("sheets unavailable")
	w, db := newTestWorker(t, sheets, nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskUpsert, "", testAggregate("a1"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	status, retries := taskStatus(t, db, task.ID)
	if status != "retry" {
		t.Errorf("task status = %q, want retry", status)
	}
	if retries != 1 {
		t.Errorf("retry count = %d, want 1", retries)
	}

	// The retry delay keeps the task off the pending list for now.
	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no immediately pending tasks, got %d", len(tasks))
	}
}

func TestProcessTaskExhaustsRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sheets := newFakeSheets()
	sheets.err = errors.New("sheets unavailable")
	w, db := newTestWorker(t, sheets, client)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskUpsert, "", testAggregate("a1"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatal("expected task on redis queue")
	}
	task.RetryCount = w.retryPolicy.MaxRetries - 1
	w.processTask(ctx, &task)

	status, _ := taskStatus(t, db, task.ID)
	if status != "failed" {
		t.Errorf("task status = %q, want failed", status)
	}
	if n, _ := client.LLen(ctx, w.deadLetterKey).Result(); n != 1 {
		t.Errorf("dead letter length = %d, want 1", n)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	w, db := newTestWorker(t, newFakeSheets(), nil)
	ctx := context.Background()

	task := models.SyncTask{
		TaskType:      models.TaskUpsert,
		AppointmentID: "a1",
		Payload:       "{not json",
		Status:        "pending",
		CreatedAt:     time.Now(),
	}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	w.processTask(ctx, &task)

	status, _ := taskStatus(t, db, task.ID)
	if status != "failed" {
		t.Errorf("task status = %q, want failed", status)
	}
}

func TestEnqueuePrefersRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	w, _ := newTestWorker(t, newFakeSheets(), client)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, models.TaskUpsert, "", testAggregate("a1"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if n, _ := client.LLen(ctx, w.redisQueueKey).Result(); n != 1 {
		t.Fatalf("redis queue length = %d, want 1", n)
	}
	if _, ok := w.tryLocalQueue(); ok {
		t.Error("task should not be on the local queue when redis accepted it")
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatal("expected task from redis")
	}
	if task.AppointmentID != "a1" {
		t.Errorf("appointment id = %q, want a1", task.AppointmentID)
	}
}

package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bengkel/internal/config"
	"bengkel/internal/database"
	"bengkel/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func sampleBooking(id string) *models.Booking {
	now := time.Now().UTC()
	return &models.Booking{
		ID:             id,
		UserID:         "u1",
		Nama:           "Budi",
		NomorTelepon:   "081234567890",
		JenisKendaraan: models.VehicleMatic,
		Tanggal:        "2025-05-21",
		Waktu:          "09:00",
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, nil, RetryPolicy{}, 0, nil)

	booking := sampleBooking("200525001")
	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
	if sheets.lastBooking == nil || sheets.lastBooking.ID != "200525001" {
		t.Fatalf("unexpected booking sent to sheets: %+v", sheets.lastBooking)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, 0, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpdateStatus, "200525002", nil, "confirmed"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("retry must wait for next_retry_at, got %d due tasks", len(pending))
	}
}

func TestProcessTaskFailPushesDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, client, RetryPolicy{MaxRetries: 1}, 0, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, "", sampleBooking("200525003"), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	if task.BookingID != "200525003" {
		t.Fatalf("booking id should default from booking, got %q", task.BookingID)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	dead, err := client.LLen(ctx, "sheets:deadletter").Result()
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	if dead != 1 {
		t.Fatalf("expected one dead letter, got %d", dead)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, nil, RetryPolicy{}, 0, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, BookingID: "200525004", Payload: "not json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	source := &fakeSource{bookings: []*models.Booking{sampleBooking("200525001"), sampleBooking("200525002")}}
	worker := NewSheetsWorker(nil, sheets, source, nil, RetryPolicy{MaxRetries: 3}, 0, nil)

	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{Booking: sampleBooking("1")})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpsertWithoutBooking", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: "1"}); err == nil {
			t.Fatalf("expected error for missing booking")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{BookingID: "200525001", Status: "confirmed"})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("Resync", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskResync, sheetTaskPayload{}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.replaced != 2 {
			t.Fatalf("expected 2 rows replaced, got %d", sheets.replaced)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "bogus", sheetTaskPayload{}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}.withDefaults()
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	policy := RetryPolicyFromConfig(config.WorkerConfig{MaxRetries: 3, InitialDelay: 500 * time.Millisecond})

	if policy.MaxDelay != defaultMaxDelay || policy.BackoffFactor != defaultBackoffFactor {
		t.Fatalf("defaults not applied: %+v", policy)
	}
	if policy.Exhausted(2) {
		t.Fatalf("attempt 2 of 3 should retry")
	}
	if !policy.Exhausted(3) {
		t.Fatalf("attempt 3 of 3 should be exhausted")
	}
	if d := policy.NextDelay(2); d != time.Second {
		t.Fatalf("attempt2 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(200); d != defaultMaxDelay {
		t.Fatalf("large attempt expected cap, got %s", d)
	}
}

func TestSheetsWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, nil, RetryPolicy{}, 0, nil)

	ctx := context.Background()
	booking := sampleBooking("200525001")

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", booking.ID, booking, ""); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("InvalidBookingID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, "", nil, ""); err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})

	t.Run("NilWorker", func(t *testing.T) {
		var nilWorker *SheetsWorker
		if err := nilWorker.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
			t.Fatalf("nil worker should accept tasks, got %v", err)
		}
	})
}

func TestSheetsWorker_StartDrainsQueue(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, nil, RetryPolicy{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a task persisted without the in-memory hand-off is still picked up by polling
	payload := `{"booking_id":"200525007","status":"confirmed"}`
	task := models.SyncTask{TaskType: TaskUpdateStatus, BookingID: "200525007", Payload: payload}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sheets.statusCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
	if sheets.statusCount() != 1 {
		t.Fatalf("expected 1 status call, got %d", sheets.statusCount())
	}
	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
}

func TestSheetsWorker_DecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, nil, RetryPolicy{}, 0, nil)

	t.Run("ValidPayload", func(t *testing.T) {
		decoded, err := worker.decodePayload(`{"booking_id":"200525001","status":"confirmed"}`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.BookingID != "200525001" || decoded.Status != "confirmed" {
			t.Fatalf("unexpected decoded payload: %+v", decoded)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		if _, err := worker.decodePayload(`invalid json`); err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

// Helpers

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	statusCalls int
	replaced    int
	lastBooking *models.Booking
}

func (f *fakeSheets) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastBooking = b
	return f.err
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) ReplaceBookingsSheet(_ context.Context, bookings []*models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = len(bookings)
	return f.err
}

func (f *fakeSheets) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type fakeSource struct {
	bookings []*models.Booking
}

func (f *fakeSource) GetAllBookings(context.Context) ([]*models.Booking, error) {
	return f.bookings, nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}

package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "db.json")
	logger := zerolog.Nop()
	s, err := Open(path, &logger)
	require.NoError(t, err)
	return s, path
}

func seedUser(t *testing.T, s *Store, id, email string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Username: id, Email: email, PasswordHash: "hash-" + id, Role: models.RoleUser}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func sampleBooking(userID string, createdAt time.Time) *models.Booking {
	return &models.Booking{
		UserID:         userID,
		Nama:           "Budi",
		NomorTelepon:   "081234567890",
		Email:          "budi@example.com",
		JenisKendaraan: models.VehicleSport,
		TypeKendaraan:  "CBR150",
		NoPolisi:       "D 4321 AB",
		Tanggal:        "2025-06-01",
		Waktu:          "09:00",
		Status:         models.StatusPending,
		CreatedAt:      createdAt,
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	s, path := openTestStore(t)
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	logger := zerolog.Nop()
	_, err := Open(path, &logger)
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u1", "  Budi@Example.com ")
	assert.Equal(t, "budi@example.com", u.Email)

	err := s.CreateUser(ctx, &models.User{ID: "u2", Email: "BUDI@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	got, err := s.GetUserByEmail(ctx, "budi@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "hash-u1", got.PasswordHash)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpdateUserPassword(ctx, "u1", "new-hash"))
	got, err = s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "missing", "x"), domain.ErrNotFound)

	seedUser(t, s, "u3", "c@example.com")
	all, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBookings_SequenceAndReload(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	base := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		b := sampleBooking("u1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateBooking(ctx, "010625", b))
		assert.Equal(t, models.FormatBookingID("010625", i+1), b.ID)
		assert.Equal(t, int64(1), b.Version)
	}
	other := sampleBooking("u1", base.Add(time.Hour))
	require.NoError(t, s.CreateBooking(ctx, "020625", other))
	assert.Equal(t, "020625001", other.ID)

	logger := zerolog.Nop()
	reopened, err := Open(path, &logger)
	require.NoError(t, err)

	got, err := reopened.GetBooking(ctx, "010625002")
	require.NoError(t, err)
	assert.Equal(t, "CBR150", got.TypeKendaraan)
	assert.Equal(t, int64(1), got.Version)

	next := sampleBooking("u1", base.Add(2*time.Hour))
	require.NoError(t, reopened.CreateBooking(ctx, "010625", next))
	assert.Equal(t, "010625004", next.ID)

	u, err := reopened.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hash-u1", u.PasswordHash)
}

func TestBookings_SequenceRebuiltFromStoredIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	raw := `{
  "users": [{"id": "u1", "username": "budi", "email": "budi@example.com", "password": "hash", "role": "user"}],
  "bookings": [
    {"id": "200525001", "userId": "u1", "nama": "Budi", "status": "pending", "version": 1},
    {"id": "200525004", "userId": "u1", "nama": "Budi", "status": "pending", "version": 1},
    {"id": "legacy-1", "userId": "u1", "nama": "Budi", "status": "pending", "version": 1}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	logger := zerolog.Nop()
	s, err := Open(path, &logger)
	require.NoError(t, err)
	assert.Equal(t, 4, s.doc.Sequences["200525"])

	ctx := context.Background()
	b := sampleBooking("u1", time.Now())
	require.NoError(t, s.CreateBooking(ctx, "200525", b))
	assert.Equal(t, "200525005", b.ID)

	// a stale counter skips ids that are already taken
	s.doc.Sequences["200525"] = 0
	again := sampleBooking("u1", time.Now())
	require.NoError(t, s.CreateBooking(ctx, "200525", again))
	assert.Equal(t, "200525002", again.ID)

	all, err := s.GetAllBookings(ctx)
	require.NoError(t, err)
	seen := make(map[string]bool, len(all))
	for _, bk := range all {
		assert.False(t, seen[bk.ID], "duplicate id %s", bk.ID)
		seen[bk.ID] = true
	}
	assert.Len(t, all, 5)
}

func TestBookings_SequenceExhausted(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	s.doc.Sequences["010625"] = models.MaxDailySequence

	err := s.CreateBooking(ctx, "010625", sampleBooking("u1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrSequenceExhausted)
	all, err := s.GetAllBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBookings_UnknownOwner(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.CreateBooking(context.Background(), "010625", sampleBooking("ghost", time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookings_ConcurrentCreateUniqueIDs(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := sampleBooking("u1", time.Now())
			if err := s.CreateBooking(ctx, "010625", b); err == nil {
				ids <- b.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestBookings_VersionedUpdate(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	b := sampleBooking("u1", time.Now())
	require.NoError(t, s.CreateBooking(ctx, "010625", b))

	first, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	second, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)

	biaya := decimal.NewFromInt(175000)
	first.Status = models.StatusCompleted
	first.Biaya = &biaya
	require.NoError(t, s.UpdateBookingWithVersion(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Catatan = "stale"
	err = s.UpdateBookingWithVersion(ctx, second, 1)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Biaya)
	assert.True(t, got.Biaya.Equal(biaya))
	assert.Equal(t, "", got.Catatan)

	missing := sampleBooking("u1", time.Now())
	missing.ID = "010625999"
	assert.ErrorIs(t, s.UpdateBookingWithVersion(ctx, missing, 1), domain.ErrNotFound)
}

func TestBookings_ListOrderingAndScope(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")

	base := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	b1 := sampleBooking("u1", base)
	b2 := sampleBooking("u2", base.Add(time.Minute))
	b3 := sampleBooking("u1", base.Add(2*time.Minute))
	for _, b := range []*models.Booking{b1, b2, b3} {
		require.NoError(t, s.CreateBooking(ctx, "010625", b))
	}

	mine, err := s.GetUserBookings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b3.ID, mine[0].ID)
	assert.Equal(t, b1.ID, mine[1].ID)

	none, err := s.GetUserBookings(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := s.GetAllBookings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{b3.ID, b2.ID, b1.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestBookings_ReturnedCopiesDoNotAlias(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	b := sampleBooking("u1", time.Now())
	require.NoError(t, s.CreateBooking(ctx, "010625", b))

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	got.Nama = "mutated"

	again, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budi", again.Nama)
}

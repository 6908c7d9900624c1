// Package filestore persists users and bookings in a single JSON document,
// the flat-file alternative to the sqlite store.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/rs/zerolog"
)

var _ domain.Repository = (*Store)(nil)

type userRecord struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type bookingRecord struct {
	models.Booking
	Version int64 `json:"version"`
}

// MarshalJSON keeps the stored version next to the booking fields; the
// promoted Booking.MarshalJSON would drop it.
func (r *bookingRecord) MarshalJSON() ([]byte, error) {
	type fields models.Booking
	return json.Marshal(struct {
		fields
		Version int64 `json:"version"`
	}{fields(r.Booking), r.Version})
}

type document struct {
	Users     []*userRecord    `json:"users"`
	Bookings  []*bookingRecord `json:"bookings"`
	Sequences map[string]int   `json:"sequences"`
}

// Store is safe for concurrent use; every mutation rewrites the file
// atomically while holding the store mutex.
type Store struct {
	path   string
	mu     sync.Mutex
	doc    document
	logger *zerolog.Logger
}

func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{path: path, logger: logger}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = document{}
	case err != nil:
		return nil, fmt.Errorf("failed to read store: %w", err)
	default:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("failed to decode store %s: %w", path, err)
		}
	}
	if s.doc.Sequences == nil {
		s.doc.Sequences = make(map[string]int)
	}
	s.reconcileSequences()

	if err := s.persist(); err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Int("users", len(s.doc.Users)).Int("bookings", len(s.doc.Bookings)).Msg("file store opened")
	return s, nil
}

// reconcileSequences raises each day's counter to the highest stored id with
// that prefix, so a missing or stale "sequences" entry cannot reissue ids.
func (s *Store) reconcileSequences() {
	for _, b := range s.doc.Bookings {
		prefix, seq, ok := splitBookingID(b.ID)
		if !ok {
			continue
		}
		if seq > s.doc.Sequences[prefix] {
			s.logger.Warn().Str("prefix", prefix).Int("stored", s.doc.Sequences[prefix]).Int("highest", seq).
				Msg("booking sequence behind stored ids, raising it")
			s.doc.Sequences[prefix] = seq
		}
	}
}

func splitBookingID(id string) (string, int, bool) {
	if len(id) != len(models.BookingIDPrefixLayout)+3 {
		return "", 0, false
	}
	prefix := id[:len(models.BookingIDPrefixLayout)]
	seq, err := strconv.Atoi(id[len(models.BookingIDPrefixLayout):])
	if err != nil || seq < 1 {
		return "", 0, false
	}
	return prefix, seq, true
}

func (s *Store) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	if s.findUser(func(u *userRecord) bool { return u.Email == user.Email }) != nil {
		return domain.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	s.doc.Users = append(s.doc.Users, &userRecord{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.PasswordHash,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt,
	})
	if err := s.persist(); err != nil {
		s.doc.Users = s.doc.Users[:len(s.doc.Users)-1]
		return err
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findUser(func(u *userRecord) bool { return u.ID == id })
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec.toModel(), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	rec := s.findUser(func(u *userRecord) bool { return u.Email == email })
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec.toModel(), nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findUser(func(u *userRecord) bool { return u.ID == id })
	if rec == nil {
		return domain.ErrNotFound
	}

	prev := *rec
	rec.Password = passwordHash
	rec.UpdatedAt = time.Now().UTC()
	if err := s.persist(); err != nil {
		*rec = prev
		return err
	}
	return nil
}

func (s *Store) GetAllUsers(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*models.User, 0, len(s.doc.Users))
	for _, rec := range s.doc.Users {
		users = append(users, rec.toModel())
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) CreateBooking(_ context.Context, prefix string, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findUser(func(u *userRecord) bool { return u.ID == booking.UserID }) == nil {
		return fmt.Errorf("booking owner %s: %w", booking.UserID, domain.ErrNotFound)
	}

	prevSeq, hadSeq := s.doc.Sequences[prefix]
	seq := prevSeq + 1
	// never hand out an id that is already stored
	for seq <= models.MaxDailySequence && s.bookingIndex(models.FormatBookingID(prefix, seq)) >= 0 {
		seq++
	}
	if seq > models.MaxDailySequence {
		return domain.ErrSequenceExhausted
	}
	s.doc.Sequences[prefix] = seq

	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}
	booking.ID = models.FormatBookingID(prefix, seq)
	booking.Version = 1

	s.doc.Bookings = append(s.doc.Bookings, newBookingRecord(booking))
	if err := s.persist(); err != nil {
		s.doc.Bookings = s.doc.Bookings[:len(s.doc.Bookings)-1]
		if hadSeq {
			s.doc.Sequences[prefix] = prevSeq
		} else {
			delete(s.doc.Sequences, prefix)
		}
		return err
	}
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.bookingIndex(id)
	if idx < 0 {
		return nil, domain.ErrNotFound
	}
	return s.doc.Bookings[idx].toModel(), nil
}

func (s *Store) UpdateBookingWithVersion(_ context.Context, booking *models.Booking, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.bookingIndex(booking.ID)
	if idx < 0 {
		return domain.ErrNotFound
	}
	current := s.doc.Bookings[idx]
	if current.Version != version {
		return domain.ErrConcurrentModification
	}

	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = time.Now().UTC()
	}
	next := newBookingRecord(booking)
	next.UserID = current.UserID
	next.CreatedAt = current.CreatedAt
	next.Version = version + 1

	s.doc.Bookings[idx] = next
	if err := s.persist(); err != nil {
		s.doc.Bookings[idx] = current
		return err
	}
	booking.Version = next.Version
	return nil
}

func (s *Store) GetUserBookings(_ context.Context, userID string) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBookings(func(b *bookingRecord) bool { return b.UserID == userID }), nil
}

func (s *Store) GetAllBookings(_ context.Context) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBookings(func(*bookingRecord) bool { return true }), nil
}

func (s *Store) listBookings(keep func(*bookingRecord) bool) []*models.Booking {
	bookings := []*models.Booking{}
	for _, rec := range s.doc.Bookings {
		if keep(rec) {
			bookings = append(bookings, rec.toModel())
		}
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].ID > bookings[j].ID
	})
	return bookings
}

func (s *Store) findUser(match func(*userRecord) bool) *userRecord {
	for _, u := range s.doc.Users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *Store) bookingIndex(id string) int {
	for i, b := range s.doc.Bookings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (u *userRecord) toModel() *models.User {
	return &models.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.Password,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func newBookingRecord(b *models.Booking) *bookingRecord {
	c := b.Clone()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &bookingRecord{Booking: *c, Version: b.Version}
}

func (r *bookingRecord) toModel() *models.Booking {
	b := r.Booking.Clone()
	b.Version = r.Version
	return b
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

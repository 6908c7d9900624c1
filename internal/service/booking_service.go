package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bengkel/internal/config"
	"bengkel/internal/domain"
	"bengkel/internal/events"
	"bengkel/internal/export"
	"bengkel/internal/metrics"
	"bengkel/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	syncTaskUpsert       = "upsert"
	syncTaskUpdateStatus = "update_status"
)

// CreateBookingRequest is the client-supplied part of a new booking.
type CreateBookingRequest struct {
	Nama           string             `json:"nama" validate:"required"`
	NomorTelepon   string             `json:"nomorTelepon" validate:"required"`
	Email          string             `json:"email" validate:"required,email"`
	JenisKendaraan models.VehicleType `json:"jenisKendaraan" validate:"required,oneof=matic bebek sport"`
	TypeKendaraan  string             `json:"typeKendaraan" validate:"required"`
	NoPolisi       string             `json:"noPolisi" validate:"required"`
	Tanggal        string             `json:"tanggal" validate:"required"`
	Waktu          string             `json:"waktu" validate:"required"`
	Catatan        string             `json:"catatan"`
}

func (r *CreateBookingRequest) trim() {
	r.Nama = strings.TrimSpace(r.Nama)
	r.NomorTelepon = strings.TrimSpace(r.NomorTelepon)
	r.Email = strings.TrimSpace(r.Email)
	r.JenisKendaraan = models.VehicleType(strings.ToLower(strings.TrimSpace(string(r.JenisKendaraan))))
	r.TypeKendaraan = strings.TrimSpace(r.TypeKendaraan)
	r.NoPolisi = strings.TrimSpace(r.NoPolisi)
	r.Tanggal = strings.TrimSpace(r.Tanggal)
	r.Waktu = strings.TrimSpace(r.Waktu)
	r.Catatan = strings.TrimSpace(r.Catatan)
}

type BookingService struct {
	repo         domain.BookingRepository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	schedule     schedule
	validate     *validator.Validate
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, cfg config.BookingConfig, loc *time.Location, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		schedule:     newSchedule(cfg.TimeSlots, cfg.MaxAdvanceDays, loc),
		validate:     newValidator(),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *BookingService) Create(ctx context.Context, owner models.Claims, req CreateBookingRequest) (*models.Booking, error) {
	req.trim()
	if err := validateStruct(s.validate, req, "invalid booking"); err != nil {
		return nil, err
	}

	now := s.now()
	var invalid []string
	if !s.schedule.validDate(req.Tanggal, now) {
		invalid = append(invalid, "tanggal")
	}
	if !s.schedule.validSlot(req.Waktu) {
		invalid = append(invalid, "waktu")
	}
	if len(invalid) > 0 {
		return nil, domain.NewValidationError("invalid booking schedule", invalid...)
	}

	booking := &models.Booking{
		UserID:         owner.ID,
		Nama:           req.Nama,
		NomorTelepon:   req.NomorTelepon,
		Email:          req.Email,
		JenisKendaraan: req.JenisKendaraan,
		TypeKendaraan:  req.TypeKendaraan,
		NoPolisi:       req.NoPolisi,
		Tanggal:        req.Tanggal,
		Waktu:          req.Waktu,
		Catatan:        req.Catatan,
		Status:         models.StatusPending,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}

	prefix := models.BookingIDPrefix(now.In(s.schedule.loc))
	if err := s.repo.CreateBooking(ctx, prefix, booking); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated()
	s.logger.Info().Str("booking_id", booking.ID).Str("user_id", owner.ID).Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, booking.Status, owner)
	s.enqueueSync(ctx, booking, syncTaskUpsert)

	return booking, nil
}

// Get returns a booking visible to caller.
func (s *BookingService) Get(ctx context.Context, caller models.Claims, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, booking) {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) ListMine(ctx context.Context, owner models.Claims) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, owner.ID)
}

func (s *BookingService) ListAll(ctx context.Context, caller models.Claims) ([]*models.Booking, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.repo.GetAllBookings(ctx)
}

// Update applies patch on behalf of caller. Owners may only reschedule or
// edit contact details of pending bookings; admins drive the lifecycle.
func (s *BookingService) Update(ctx context.Context, caller models.Claims, id string, patch models.BookingPatch) (*models.Booking, error) {
	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, current) {
		return nil, domain.ErrForbidden
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if !caller.IsAdmin() {
		if patch.TouchesWorkflow() || patch.TouchesVehicle() {
			return nil, fmt.Errorf("%w: only an admin may change status, biaya or vehicle details", domain.ErrForbidden)
		}
		if current.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: booking is %s and can no longer be edited", domain.ErrInvalidTransition, current.Status)
		}
	}

	if err := s.validatePatch(&patch); err != nil {
		return nil, err
	}
	if err := checkWorkflow(current, patch); err != nil {
		return nil, err
	}

	updated := current.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateBookingWithVersion(ctx, updated, current.Version); err != nil {
		return nil, err
	}

	eventType := events.EventBookingUpdated
	if updated.Status != current.Status {
		eventType = events.EventBookingStatusChanged
		metrics.IncStatusTransition(string(current.Status), string(updated.Status))
	}
	s.logger.Info().
		Str("booking_id", updated.ID).
		Str("by", caller.ID).
		Str("from", string(current.Status)).
		Str("to", string(updated.Status)).
		Msg("booking updated")
	s.publishEvent(eventType, updated, current.Status, caller)
	s.enqueueSync(ctx, updated, syncTaskUpsert)

	return updated, nil
}

// Cancel moves a pending booking to cancelled.
func (s *BookingService) Cancel(ctx context.Context, caller models.Claims, id string) (*models.Booking, error) {
	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, current) {
		return nil, domain.ErrForbidden
	}
	if current.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: only pending bookings can be cancelled, booking is %s", domain.ErrInvalidTransition, current.Status)
	}

	updated := current.Clone()
	updated.Status = models.StatusCancelled
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateBookingWithVersion(ctx, updated, current.Version); err != nil {
		return nil, err
	}

	metrics.IncStatusTransition(string(current.Status), string(updated.Status))
	s.logger.Info().Str("booking_id", updated.ID).Str("by", caller.ID).Msg("booking cancelled")
	s.publishEvent(events.EventBookingCancelled, updated, current.Status, caller)
	s.enqueueSync(ctx, updated, syncTaskUpdateStatus)

	return updated, nil
}

func (s *BookingService) Stats(ctx context.Context, caller models.Claims) (*models.BookingStats, error) {
	bookings, err := s.ListAll(ctx, caller)
	if err != nil {
		return nil, err
	}
	stats := models.NewBookingStats()
	for _, b := range bookings {
		stats.Add(b)
	}
	return stats, nil
}

// Export writes every booking to w as an XLSX workbook.
func (s *BookingService) Export(ctx context.Context, caller models.Claims, w io.Writer) error {
	bookings, err := s.ListAll(ctx, caller)
	if err != nil {
		return err
	}
	return export.WriteBookings(w, bookings, s.schedule.loc)
}

func canAccess(caller models.Claims, b *models.Booking) bool {
	return caller.IsAdmin() || b.IsOwnedBy(caller.ID)
}

func (s *BookingService) validatePatch(p *models.BookingPatch) error {
	for _, f := range []*string{p.Nama, p.NomorTelepon, p.Email, p.TypeKendaraan, p.NoPolisi, p.Tanggal, p.Waktu, p.Catatan} {
		trimPtr(f)
	}

	var invalid []string
	required := []struct {
		name  string
		value *string
	}{
		{"nama", p.Nama},
		{"nomorTelepon", p.NomorTelepon},
		{"typeKendaraan", p.TypeKendaraan},
		{"noPolisi", p.NoPolisi},
	}
	for _, r := range required {
		if r.value != nil && *r.value == "" {
			invalid = append(invalid, r.name)
		}
	}
	if p.Email != nil && !isEmail(s.validate, *p.Email) {
		invalid = append(invalid, "email")
	}
	if p.JenisKendaraan != nil {
		jenis := models.VehicleType(strings.ToLower(strings.TrimSpace(string(*p.JenisKendaraan))))
		p.JenisKendaraan = &jenis
		if !isVehicleType(jenis) {
			invalid = append(invalid, "jenisKendaraan")
		}
	}
	if p.Tanggal != nil && !s.schedule.validDate(*p.Tanggal, s.now()) {
		invalid = append(invalid, "tanggal")
	}
	if p.Waktu != nil && !s.schedule.validSlot(*p.Waktu) {
		invalid = append(invalid, "waktu")
	}
	if p.Status != nil && !p.Status.Valid() {
		invalid = append(invalid, "status")
	}

	if len(invalid) > 0 {
		return domain.NewValidationError("invalid booking update", invalid...)
	}
	return nil
}

// checkWorkflow enforces the transition table and the biaya rules.
func checkWorkflow(current *models.Booking, p models.BookingPatch) error {
	target := current.Status
	if p.Status != nil {
		target = *p.Status
	}
	changing := target != current.Status

	if changing && !CanTransition(current.Status, target) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, target)
	}

	completing := changing && target == models.StatusCompleted
	if completing {
		if p.Biaya == nil {
			return domain.NewValidationError("biaya is required to complete a booking", "biaya")
		}
		if !p.Biaya.IsPositive() {
			return domain.NewValidationError("biaya must be greater than zero", "biaya")
		}
	} else if p.Biaya != nil {
		return domain.NewValidationError("biaya can only be set when completing a booking", "biaya")
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous models.BookingStatus, actor models.Claims) {
	if s.eventBus == nil {
		return
	}
	payload := events.NewBookingPayload(booking, previous, actor)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == syncTaskUpdateStatus {
		status = string(booking.Status)
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking.Clone(), status); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"
	"bengkel/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Identity interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error)
	Verify(ctx context.Context, token string) (*models.Session, error)
	Logout(ctx context.Context, session *models.Session) error
	ChangePassword(ctx context.Context, userID string, req service.ChangePasswordRequest) error
	ListUsers(ctx context.Context, caller models.Claims) ([]*models.User, error)
}

type Bookings interface {
	Create(ctx context.Context, owner models.Claims, req service.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, caller models.Claims, id string) (*models.Booking, error)
	ListMine(ctx context.Context, owner models.Claims) ([]*models.Booking, error)
	ListAll(ctx context.Context, caller models.Claims) ([]*models.Booking, error)
	Update(ctx context.Context, caller models.Claims, id string, patch models.BookingPatch) (*models.Booking, error)
	Cancel(ctx context.Context, caller models.Claims, id string) (*models.Booking, error)
	Stats(ctx context.Context, caller models.Claims) (*models.BookingStats, error)
	Export(ctx context.Context, caller models.Claims, w io.Writer) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	identity Identity
	bookings Bookings
	store    Pinger
	logger   *zerolog.Logger
	now      func() time.Time
}

// decodeJSON reads a bounded JSON body into v. strict rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, strict bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("request body is required")
		}
		return domain.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeDomainError(w, r, h.logger, err)
}

func mustSession(r *http.Request) *models.Session {
	session, _ := sessionFrom(r.Context())
	return session
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.identity.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Registrasi berhasil!", "user": user})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.identity.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Login berhasil!",
		"token":     result.Session.Token,
		"expiresAt": result.Session.ExpiresAt,
		"user":      result.User,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context(), mustSession(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logout berhasil"})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.identity.ChangePassword(r.Context(), mustSession(r).Claims.ID, req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password berhasil diubah"})
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context(), mustSession(r).Claims)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.bookings.Create(r.Context(), mustSession(r).Claims, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Booking berhasil dibuat!", "booking": booking})
}

func (h *handlers) myBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListMine(r.Context(), mustSession(r).Claims)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (h *handlers) allBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListAll(r.Context(), mustSession(r).Claims)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (h *handlers) bookingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookings.Stats(r.Context(), mustSession(r).Claims)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *handlers) exportBookings(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.bookings.Export(r.Context(), mustSession(r).Claims, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	filename := fmt.Sprintf("bookings-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Get(r.Context(), mustSession(r).Claims, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (h *handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	var patch models.BookingPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.bookings.Update(r.Context(), mustSession(r).Claims, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Booking berhasil diupdate", "booking": booking})
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Cancel(r.Context(), mustSession(r).Claims, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Booking berhasil dibatalkan", "booking": booking})
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func nonNil(bookings []*models.Booking) []*models.Booking {
	if bookings == nil {
		return []*models.Booking{}
	}
	return bookings
}

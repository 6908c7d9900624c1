package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/shopspring/decimal"
)

const bookingColumns = `id, user_id, nama, nomor_telepon, email, jenis_kendaraan, type_kendaraan,
	no_polisi, tanggal, waktu, catatan, status, biaya, version, created_at, updated_at`

// CreateBooking allocates the next sequence for prefix and inserts the
// booking in the same transaction, so concurrent creates never share an id.
func (db *DB) CreateBooking(ctx context.Context, prefix string, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seq, err := nextSequence(ctx, tx, prefix)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}
	booking.ID = models.FormatBookingID(prefix, seq)
	booking.Version = 1

	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.Nama,
		booking.NomorTelepon,
		booking.Email,
		booking.JenisKendaraan,
		booking.TypeKendaraan,
		booking.NoPolisi,
		booking.Tanggal,
		booking.Waktu,
		booking.Catatan,
		booking.Status,
		nullDecimal(booking.Biaya),
		booking.Version,
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func nextSequence(ctx context.Context, tx *sql.Tx, prefix string) (int, error) {
	var seq int
	query := `INSERT INTO booking_sequences (prefix, last_seq) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET last_seq = last_seq + 1
		RETURNING last_seq`
	if err := tx.QueryRowContext(ctx, query, prefix).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate booking sequence: %w", err)
	}
	if seq > models.MaxDailySequence {
		return 0, domain.ErrSequenceExhausted
	}
	return seq, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, version int64) error {
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = time.Now().UTC()
	}

	query := `UPDATE bookings SET
			nama = ?, nomor_telepon = ?, email = ?, jenis_kendaraan = ?, type_kendaraan = ?,
			no_polisi = ?, tanggal = ?, waktu = ?, catatan = ?, status = ?, biaya = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query,
		booking.Nama,
		booking.NomorTelepon,
		booking.Email,
		booking.JenisKendaraan,
		booking.TypeKendaraan,
		booking.NoPolisi,
		booking.Tanggal,
		booking.Waktu,
		booking.Catatan,
		booking.Status,
		nullDecimal(booking.Biaya),
		booking.UpdatedAt.UTC(),
		booking.ID,
		version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetBooking(ctx, booking.ID); err != nil {
			return err
		}
		return domain.ErrConcurrentModification
	}
	booking.Version = version + 1
	return nil
}

func (db *DB) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return db.queryBookings(ctx, query, userID)
}

func (db *DB) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC, id DESC`
	return db.queryBookings(ctx, query)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var biaya decimal.NullDecimal
	err := row.Scan(
		&b.ID, &b.UserID, &b.Nama, &b.NomorTelepon, &b.Email, &b.JenisKendaraan, &b.TypeKendaraan,
		&b.NoPolisi, &b.Tanggal, &b.Waktu, &b.Catatan, &b.Status, &biaya, &b.Version,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if biaya.Valid {
		b.Biaya = &biaya.Decimal
	}
	return b, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

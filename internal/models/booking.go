package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	Nama           string           `json:"nama"`
	NomorTelepon   string           `json:"nomorTelepon"`
	Email          string           `json:"email"`
	JenisKendaraan VehicleType      `json:"jenisKendaraan"`
	TypeKendaraan  string           `json:"typeKendaraan"`
	NoPolisi       string           `json:"noPolisi"`
	Tanggal        string           `json:"tanggal"`
	Waktu          string           `json:"waktu"`
	Catatan        string           `json:"catatan"`
	Status         BookingStatus    `json:"status"`
	Biaya          *decimal.Decimal `json:"biaya"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Version        int64            `json:"-"`
}

// MarshalJSON writes biaya as a bare JSON number, or null when unset.
func (b Booking) MarshalJSON() ([]byte, error) {
	type fields Booking
	return json.Marshal(struct {
		fields
		Biaya json.RawMessage `json:"biaya"`
	}{fields(b), decimalNumber(b.Biaya)})
}

// decimalNumber renders d without the quotes decimal.Decimal uses by default.
func decimalNumber(d *decimal.Decimal) json.RawMessage {
	if d == nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(d.String())
}

// Clone returns a deep copy so callers can mutate without aliasing storage.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Biaya != nil {
		biaya := *b.Biaya
		c.Biaya = &biaya
	}
	return &c
}

// IsOwnedBy reports whether userID created the booking.
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID != "" && b.UserID == userID
}

// BookingIDPrefix returns the DDMMYY prefix for bookings created at t.
// t must already be in the shop's time zone.
func BookingIDPrefix(t time.Time) string {
	return t.Format(BookingIDPrefixLayout)
}

// FormatBookingID joins a day prefix and a daily sequence, e.g. "010625" + 7 -> "010625007".
func FormatBookingID(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// BookingPatch is a partial update. Nil fields are left untouched.
type BookingPatch struct {
	Nama           *string          `json:"nama,omitempty"`
	NomorTelepon   *string          `json:"nomorTelepon,omitempty"`
	Email          *string          `json:"email,omitempty"`
	JenisKendaraan *VehicleType     `json:"jenisKendaraan,omitempty"`
	TypeKendaraan  *string          `json:"typeKendaraan,omitempty"`
	NoPolisi       *string          `json:"noPolisi,omitempty"`
	Tanggal        *string          `json:"tanggal,omitempty"`
	Waktu          *string          `json:"waktu,omitempty"`
	Catatan        *string          `json:"catatan,omitempty"`
	Status         *BookingStatus   `json:"status,omitempty"`
	Biaya          *decimal.Decimal `json:"biaya,omitempty"`
}

func (p BookingPatch) IsEmpty() bool {
	return p.Nama == nil && p.NomorTelepon == nil && p.Email == nil &&
		p.JenisKendaraan == nil && p.TypeKendaraan == nil && p.NoPolisi == nil &&
		p.Tanggal == nil && p.Waktu == nil && p.Catatan == nil &&
		p.Status == nil && p.Biaya == nil
}

// TouchesVehicle reports whether the patch edits vehicle identity fields.
func (p BookingPatch) TouchesVehicle() bool {
	return p.JenisKendaraan != nil || p.TypeKendaraan != nil || p.NoPolisi != nil
}

// TouchesWorkflow reports whether the patch edits status or pricing.
func (p BookingPatch) TouchesWorkflow() bool {
	return p.Status != nil || p.Biaya != nil
}

// Apply copies every supplied field onto b.
func (p BookingPatch) Apply(b *Booking) {
	if p.Nama != nil {
		b.Nama = *p.Nama
	}
	if p.NomorTelepon != nil {
		b.NomorTelepon = *p.NomorTelepon
	}
	if p.Email != nil {
		b.Email = *p.Email
	}
	if p.JenisKendaraan != nil {
		b.JenisKendaraan = *p.JenisKendaraan
	}
	if p.TypeKendaraan != nil {
		b.TypeKendaraan = *p.TypeKendaraan
	}
	if p.NoPolisi != nil {
		b.NoPolisi = *p.NoPolisi
	}
	if p.Tanggal != nil {
		b.Tanggal = *p.Tanggal
	}
	if p.Waktu != nil {
		b.Waktu = *p.Waktu
	}
	if p.Catatan != nil {
		b.Catatan = *p.Catatan
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Biaya != nil {
		biaya := *p.Biaya
		b.Biaya = &biaya
	}
}

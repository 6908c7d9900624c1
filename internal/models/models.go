package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// BookingStats summarizes a set of bookings for the admin dashboard.
type BookingStats struct {
	Total    int                   `json:"total"`
	ByStatus map[BookingStatus]int `json:"byStatus"`
	Revenue  decimal.Decimal       `json:"revenue"`
}

func NewBookingStats() *BookingStats {
	byStatus := make(map[BookingStatus]int, len(AllStatuses))
	for _, st := range AllStatuses {
		byStatus[st] = 0
	}
	return &BookingStats{ByStatus: byStatus, Revenue: decimal.Zero}
}

// Add counts b; only completed bookings contribute revenue.
func (s *BookingStats) Add(b *Booking) {
	s.Total++
	s.ByStatus[b.Status]++
	if b.Status == StatusCompleted && b.Biaya != nil {
		s.Revenue = s.Revenue.Add(*b.Biaya)
	}
}

// MarshalJSON writes revenue as a bare JSON number.
func (s BookingStats) MarshalJSON() ([]byte, error) {
	type fields BookingStats
	return json.Marshal(struct {
		fields
		Revenue json.RawMessage `json:"revenue"`
	}{fields(s), decimalNumber(&s.Revenue)})
}

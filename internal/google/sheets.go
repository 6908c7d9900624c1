// Package google mirrors bookings into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"bengkel/internal/breaker"
	"bengkel/internal/models"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetName      = "Bookings"
	lastColumn     = "O"
	statusColumn   = "L"
	updatedColumn  = "O"
	timestampStyle = "2006-01-02 15:04:05"
)

// ErrRowNotFound is returned when a booking has no row in the sheet.
var ErrRowNotFound = errors.New("booking row not found")

// Headers is the first row of the bookings sheet.
var Headers = []interface{}{
	"ID", "User ID", "Nama", "Nomor Telepon", "Email", "Jenis Kendaraan", "Type Kendaraan",
	"No Polisi", "Tanggal", "Waktu", "Catatan", "Status", "Biaya", "Created At", "Updated At",
}

var rowInRange = regexp.MustCompile(`![A-Z]+(\d+)`)

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	cb            *gobreaker.CircuitBreaker
	logger        *zerolog.Logger
	loc           *time.Location
	now           func() time.Time

	cacheMu  sync.RWMutex
	rowCache map[string]int
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, loc *time.Location, logger *zerolog.Logger) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, spreadsheetID, loc, logger), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string, loc *time.Location, logger *zerolog.Logger) *SheetsService {
	if loc == nil {
		loc = time.UTC
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		cb:            breaker.New("google_sheets", 30*time.Second, logger),
		logger:        logger,
		loc:           loc,
		now:           time.Now,
		rowCache:      make(map[string]int),
	}
}

func call[T any](s *SheetsService, fn func() (T, error)) (T, error) {
	return breaker.Call(s.cb, fn)
}

// TestConnection reads the header cell of the bookings sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := call(s, func() (*sheets.ValueRange, error) {
		return s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A1").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// StartCacheRefresh warms the row cache now and then every interval
// until ctx is done.
func (s *SheetsService) StartCacheRefresh(ctx context.Context, interval time.Duration) {
	refresh := func() {
		c, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(c); err != nil {
			s.logger.Warn().Err(err).Msg("sheets cache refresh failed")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// WarmUpCache rebuilds the id to row index from column A.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.readIDColumn(ctx)
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.Booking) error {
	resp, err := call(s, func() (*sheets.AppendValuesResponse, error) {
		return s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheetName+"!A:A", &sheets.ValueRange{
			Values: [][]interface{}{s.rowValues(booking)},
		}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to append booking %s: %w", booking.ID, err)
	}

	if resp != nil && resp.Updates != nil {
		if row, ok := parseRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(booking.ID, row)
		}
	}
	return nil
}

// UpsertBooking rewrites the booking's row, appending one if absent.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking is nil")
	}

	rowIdx, err := s.FindBookingRow(ctx, booking.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendBooking(ctx, booking)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowIdx, lastColumn, rowIdx)
	_, err = call(s, func() (*sheets.UpdateValuesResponse, error) {
		return s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
			Values: [][]interface{}{s.rowValues(booking)},
		}).ValueInputOption("RAW").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}
	return nil
}

// UpdateBookingStatus writes the status and updated-at cells only.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	data := []*sheets.ValueRange{
		{
			Range:  fmt.Sprintf("%s!%s%d", sheetName, statusColumn, rowIdx),
			Values: [][]interface{}{{status}},
		},
		{
			Range:  fmt.Sprintf("%s!%s%d", sheetName, updatedColumn, rowIdx),
			Values: [][]interface{}{{s.now().In(s.loc).Format(timestampStyle)}},
		},
	}
	_, err = call(s, func() (*sheets.BatchUpdateValuesResponse, error) {
		return s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             data,
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to update status of booking %s: %w", bookingID, err)
	}
	return nil
}

// ReplaceBookingsSheet rewrites the whole sheet, header included.
func (s *SheetsService) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	_, err := call(s, func() (*sheets.ClearValuesResponse, error) {
		return s.service.Spreadsheets.Values.Clear(s.spreadsheetID, sheetName+"!A:"+lastColumn, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, Headers)
	for _, b := range bookings {
		values = append(values, s.rowValues(b))
	}

	_, err = call(s, func() (*sheets.UpdateValuesResponse, error) {
		return s.service.Spreadsheets.Values.Update(s.spreadsheetID, sheetName+"!A1", &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to write bookings sheet: %w", err)
	}

	cache := make(map[string]int, len(bookings))
	for i, b := range bookings {
		cache[b.ID] = i + 2
	}
	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// FindBookingRow returns the 1-based row of bookingID.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, errors.New("booking id is required")
	}
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.readIDColumn(ctx)
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok && id == bookingID {
			s.setCachedRow(bookingID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *SheetsService) readIDColumn(ctx context.Context) (*sheets.ValueRange, error) {
	resp, err := call(s, func() (*sheets.ValueRange, error) {
		return s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read booking ids: %w", err)
	}
	return resp, nil
}

func (s *SheetsService) rowValues(b *models.Booking) []interface{} {
	biaya := ""
	if b.Biaya != nil {
		biaya = b.Biaya.String()
	}
	return []interface{}{
		b.ID,
		b.UserID,
		b.Nama,
		b.NomorTelepon,
		b.Email,
		string(b.JenisKendaraan),
		b.TypeKendaraan,
		b.NoPolisi,
		b.Tanggal,
		b.Waktu,
		b.Catatan,
		string(b.Status),
		biaya,
		b.CreatedAt.In(s.loc).Format(timestampStyle),
		b.UpdatedAt.In(s.loc).Format(timestampStyle),
	}
}

// cellID reads a booking id from column A. Ids typed as numbers lose
// their leading zero, so they are padded back to nine digits.
func cellID(row []interface{}) (string, bool) {
	if len(row) == 0 {
		return "", false
	}
	switch v := row[0].(type) {
	case string:
		if _, err := strconv.ParseUint(v, 10, 64); err != nil || v == "" {
			return "", false
		}
		return v, true
	case float64:
		if v <= 0 {
			return "", false
		}
		return fmt.Sprintf("%09d", int64(v)), true
	}
	return "", false
}

func parseRow(updatedRange string) (int, bool) {
	m := rowInRange.FindStringSubmatch(updatedRange)
	if len(m) != 2 {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

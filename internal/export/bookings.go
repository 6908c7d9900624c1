// Package export renders bookings as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"bengkel/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Bookings"

// Headers is the column order of the bookings sheet.
var Headers = []string{
	"ID", "Nama", "Nomor Telepon", "Email", "Jenis Kendaraan", "Type Kendaraan",
	"No Polisi", "Tanggal", "Waktu", "Catatan", "Status", "Biaya", "Dibuat",
}

// WriteBookings writes one row per booking; timestamps are shown in loc.
func WriteBookings(w io.Writer, bookings []*models.Booking, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, headerStyle)
	}

	for r, b := range bookings {
		row := r + 2
		for c, v := range rowValues(b, loc) {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "M", 18)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func rowValues(b *models.Booking, loc *time.Location) []interface{} {
	var biaya interface{} = ""
	if b.Biaya != nil {
		biaya = b.Biaya.InexactFloat64()
	}
	return []interface{}{
		b.ID,
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
		b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
}

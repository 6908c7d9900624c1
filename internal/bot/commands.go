package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"bengkel/internal/domain"
	"bengkel/internal/models"
)

const (
	maxListed = 30

	helpText = "Perintah admin:\n" +
		"/today - booking hari ini\n" +
		"/pending - booking menunggu konfirmasi\n" +
		"/stats - statistik booking\n" +
		"/booking <id> - detail booking\n" +
		"/confirm <id> - konfirmasi booking"
)

func (b *Bot) handleCommand(ctx context.Context, actor models.Claims, command, args string) string {
	switch command {
	case "start", "help":
		return helpText
	case "today":
		today := b.now().In(b.loc).Format(models.DateLayout)
		return b.listBookings(ctx, actor, "Booking hari ini ("+today+")", func(bk *models.Booking) bool {
			return bk.Tanggal == today && bk.Status != models.StatusCancelled
		})
	case "pending":
		return b.listBookings(ctx, actor, "Booking pending", func(bk *models.Booking) bool {
			return bk.Status == models.StatusPending
		})
	case "stats":
		return b.stats(ctx, actor)
	case "booking":
		return b.showBooking(ctx, actor, args)
	case "confirm":
		return b.confirm(ctx, actor, args)
	default:
		return "Perintah tidak dikenal.\n\n" + helpText
	}
}

func (b *Bot) listBookings(ctx context.Context, actor models.Claims, title string, keep func(*models.Booking) bool) string {
	all, err := b.bookings.ListAll(ctx, actor)
	if err != nil {
		return b.errorReply(err)
	}

	var selected []*models.Booking
	for _, bk := range all {
		if keep(bk) {
			selected = append(selected, bk)
		}
	}
	if len(selected) == 0 {
		return title + ": tidak ada."
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Tanggal != selected[j].Tanggal {
			return selected[i].Tanggal < selected[j].Tanggal
		}
		return selected[i].Waktu < selected[j].Waktu
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d\n", title, len(selected))
	for i, bk := range selected {
		if i == maxListed {
			fmt.Fprintf(&sb, "... dan %d lainnya", len(selected)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "\n#%s %s %s - %s (%s %s) [%s]", bk.ID, bk.Tanggal, bk.Waktu, bk.Nama, bk.TypeKendaraan, bk.NoPolisi, bk.Status)
	}
	return sb.String()
}

func (b *Bot) stats(ctx context.Context, actor models.Claims) string {
	stats, err := b.bookings.Stats(ctx, actor)
	if err != nil {
		return b.errorReply(err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total booking: %d\n", stats.Total)
	for _, st := range models.AllStatuses {
		fmt.Fprintf(&sb, "%s: %d\n", st, stats.ByStatus[st])
	}
	fmt.Fprintf(&sb, "Pendapatan: Rp %s", stats.Revenue.StringFixed(0))
	return sb.String()
}

func (b *Bot) showBooking(ctx context.Context, actor models.Claims, id string) string {
	if id == "" {
		return "Gunakan: /booking <id>"
	}
	bk, err := b.bookings.Get(ctx, actor, id)
	if err != nil {
		return b.errorReply(err)
	}
	return formatBooking(bk)
}

func (b *Bot) confirm(ctx context.Context, actor models.Claims, id string) string {
	if id == "" {
		return "Gunakan: /confirm <id>"
	}
	status := models.StatusConfirmed
	bk, err := b.bookings.Update(ctx, actor, id, models.BookingPatch{Status: &status})
	if err != nil {
		return b.errorReply(err)
	}
	return fmt.Sprintf("Booking #%s dikonfirmasi.", bk.ID)
}

func (b *Bot) errorReply(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Booking tidak ditemukan."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Status booking tidak bisa diubah: " + err.Error()
	case errors.Is(err, domain.ErrConcurrentModification):
		return "Booking sedang diubah, coba lagi."
	default:
		b.logger.Error().Err(err).Msg("command failed")
		return "Terjadi kesalahan server."
	}
}

func formatBooking(bk *models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking #%s\n", bk.ID)
	fmt.Fprintf(&sb, "Status: %s\n", bk.Status)
	fmt.Fprintf(&sb, "Nama: %s (%s)\n", bk.Nama, bk.NomorTelepon)
	fmt.Fprintf(&sb, "Kendaraan: %s %s, %s\n", bk.JenisKendaraan, bk.TypeKendaraan, bk.NoPolisi)
	fmt.Fprintf(&sb, "Jadwal: %s %s", bk.Tanggal, bk.Waktu)
	if bk.Catatan != "" {
		fmt.Fprintf(&sb, "\nCatatan: %s", bk.Catatan)
	}
	if bk.Biaya != nil {
		fmt.Fprintf(&sb, "\nBiaya: Rp %s", bk.Biaya.StringFixed(0))
	}
	return sb.String()
}

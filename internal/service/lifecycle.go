package service

import "bengkel/internal/models"

var allowedTransitions = map[models.BookingStatus]map[models.BookingStatus]bool{
	models.StatusPending:    {models.StatusConfirmed: true, models.StatusCancelled: true},
	models.StatusConfirmed:  {models.StatusInProgress: true, models.StatusCompleted: true, models.StatusCancelled: true},
	models.StatusInProgress: {models.StatusCompleted: true},
	models.StatusCompleted:  {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether a booking may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to models.BookingStatus) bool {
	if from == to {
		return from.Valid()
	}
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// NextStatuses lists the statuses reachable from status in lifecycle order.
func NextStatuses(status models.BookingStatus) []models.BookingStatus {
	next := []models.BookingStatus{}
	for _, st := range models.AllStatuses {
		if allowedTransitions[status][st] {
			next = append(next, st)
		}
	}
	return next
}

package dto

import (
	"errors"

	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/pkg/jsonx"
)

var ErrEmptyBookingUpdate = errors.New("at least one of status, notes is required")

// BookingUpdate is the body of PATCH .../bookings/{bid}.
type BookingUpdate struct {
	Status jsonx.Field[string] `json:"status"`
	Notes  jsonx.Field[string] `json:"notes"`
}

func (r *BookingUpdate) ToUpdate() (booking.Update, error) {
	u := booking.Update{Status: r.Status.ValueOr(""), Notes: r.Notes.ValueOr("")}
	if u.Status == "" && u.Notes == "" {
		return booking.Update{}, ErrEmptyBookingUpdate
	}
	return u, nil
}

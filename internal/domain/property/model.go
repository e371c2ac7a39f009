package property

import (
	"errors"
	"time"
)

// Property, Room and Availability are read-only records owned by the
// property-management side of the platform.

type Property struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
	Address  string `json:"address"`
}

type Room struct {
	ID           string  `json:"id"`
	PropertyID   string  `json:"property_id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Description  string  `json:"description"`
	MaxOccupancy int     `json:"max_occupancy"`
	Quantity     int     `json:"quantity"`
	BaseRate     float64 `json:"base_rate"`
}

// Availability is one room's sellable state for one calendar day.
type Availability struct {
	RoomID    string    `json:"room_id"`
	Date      time.Time `json:"date"`
	Available int       `json:"available"`
	Rate      *float64  `json:"rate,omitempty"` // nullable; falls back to the room base rate
	MinStay   int       `json:"min_stay"`
	Closed    bool      `json:"closed"`
}

// HorizonDays is the forward window used for rate pushes and for the
// default availability range.
const HorizonDays = 365

const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultRange returns today through today+365 days.
func DefaultRange(now time.Time) DateRange {
	start := Day(now)
	return DateRange{Start: start, End: start.AddDate(0, 0, HorizonDays)}
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("date range requires start and end")
	}
	if Day(r.End).Before(Day(r.Start)) {
		return errors.New("date range end is before start")
	}
	return nil
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return int(Day(r.End).Sub(Day(r.Start)).Hours()/24) + 1
}

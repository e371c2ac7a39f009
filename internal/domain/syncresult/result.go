package syncresult

import (
	"fmt"
	"time"
)

type Type string

const (
	Inventory    Type = "inventory"
	Rates        Type = "rates"
	Availability Type = "availability"
	Booking      Type = "booking"
)

func (t Type) Valid() bool {
	switch t {
	case Inventory, Rates, Availability, Booking:
		return true
	}
	return false
}

// ParseType converts a sync type string (as used in URLs and schedules) to Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() || t == Booking {
		return "", fmt.Errorf("invalid sync type: %q", s)
	}
	return t, nil
}

// Result is the outcome of one sync operation against one channel.
// Values are built once (see Builder) and treated as immutable afterwards.
type Result struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	Errors          []string  `json:"errors"`
	Warnings        []string  `json:"warnings"`
	SyncedRooms     int       `json:"synced_rooms"`
	SyncedRates     int       `json:"synced_rates"`
	SyncedInventory int       `json:"synced_inventory"`
	Timestamp       time.Time `json:"timestamp"`
	ChannelID       string    `json:"channel_id"`
	PropertyID      string    `json:"property_id"`
	SyncType        Type      `json:"sync_type"`
}

// Count returns the count field that corresponds to the result's sync type.
func (r *Result) Count() int {
	switch r.SyncType {
	case Inventory:
		return r.SyncedRooms
	case Rates:
		return r.SyncedRates
	case Availability:
		return r.SyncedInventory
	}
	return 0
}

// Failed builds a failed result carrying at least one error.
func Failed(channelID, propertyID string, t Type, now time.Time, msg string, errs ...string) *Result {
	if len(errs) == 0 {
		errs = []string{msg}
	}
	return &Result{
		Success:    false,
		Message:    msg,
		Errors:     append([]string(nil), errs...),
		Warnings:   []string{},
		Timestamp:  now,
		ChannelID:  channelID,
		PropertyID: propertyID,
		SyncType:   t,
	}
}

// ConnectionTestResult is returned by connector connection tests.
type ConnectionTestResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

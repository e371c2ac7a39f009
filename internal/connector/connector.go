// Package connector defines the capability contract every channel adapter
// implements, the rules they share, and the type registry the orchestrator
// resolves them through.
package connector

import (
	"context"
	"time"

	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/ratelimit"
	"github.com/edirooss/chansync/internal/transport"
	"go.uber.org/zap"
)

// Connector translates internal records to one channel's wire protocol.
//
// Sync methods never return Go errors: every expected failure is reported
// in the returned Result.
type Connector interface {
	Type() string
	RequestsPerMinute() int
	RequiredCredentials() []string

	// TestConnection performs a minimal authenticated read against the
	// endpoint cfg selects; it never mutates remote state.
	TestConnection(ctx context.Context, creds channel.Credentials, cfg channel.Configuration) syncresult.ConnectionTestResult

	SyncInventory(ctx context.Context, req InventoryRequest) *syncresult.Result
	SyncRates(ctx context.Context, req RatesRequest) *syncresult.Result
	SyncAvailability(ctx context.Context, req AvailabilityRequest) *syncresult.Result

	// GetBookings returns an empty slice on any error.
	GetBookings(ctx context.Context, creds channel.Credentials, cfg channel.Configuration, r property.DateRange) []booking.Booking
	UpdateBooking(ctx context.Context, req BookingUpdateRequest) *syncresult.Result
}

// Target identifies the channel a request is addressed to.
type Target struct {
	ChannelID     string
	Property      property.Property
	Credentials   channel.Credentials
	Configuration channel.Configuration
	Mappings      channel.Mappings
}

type InventoryRequest struct {
	Target
	Rooms []property.Room
}

type RatesRequest struct {
	Target
	Rooms []property.Room
}

type AvailabilityRequest struct {
	Target
	Rooms        []property.Room // base rates for records without a rate
	Availability []property.Availability
	DateRange    property.DateRange
}

type BookingUpdateRequest struct {
	Target
	BookingID string
	Update    booking.Update
}

// Settings are per-type overrides from configuration.
type Settings struct {
	BaseURL           string
	RequestsPerMinute int
}

// Deps carries everything a connector constructor needs.
type Deps struct {
	Log       *zap.Logger
	Transport transport.Options
	Policy    syncresult.Policy
	Now       func() time.Time

	// Settings is keyed by connector type.
	Settings map[string]Settings

	// Limiter builds the per-connector limiter; defaults to a Pacer.
	Limiter func(rpm int) ratelimit.Limiter
}

func (d Deps) settings(typ string) Settings {
	if d.Settings == nil {
		return Settings{}
	}
	return d.Settings[typ]
}

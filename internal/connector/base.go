package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/ratelimit"
	"github.com/edirooss/chansync/internal/transport"
	"go.uber.org/zap"
)

// Base holds the plumbing shared by every connector variant: the transport
// client, the limiter, the clock and the batch policy. Variants embed it.
type Base struct {
	log      *zap.Logger
	typ      string
	rpm      int
	baseURL  string
	required []string

	client  *transport.Client
	limiter ratelimit.Limiter
	policy  syncresult.Policy
	now     func() time.Time
}

// NewBase wires a Base for connector type typ. defaultRPM and defaultURL
// apply unless deps.Settings overrides them.
func NewBase(deps Deps, typ string, defaultRPM int, defaultURL string, required []string) *Base {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(typ)

	s := deps.settings(typ)
	rpm := defaultRPM
	if s.RequestsPerMinute != 0 {
		rpm = s.RequestsPerMinute
	}
	url := defaultURL
	if s.BaseURL != "" {
		url = s.BaseURL
	}

	var lim ratelimit.Limiter
	if deps.Limiter != nil {
		lim = deps.Limiter(rpm)
	} else {
		lim = ratelimit.NewPacer(rpm)
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Base{
		log:      log,
		typ:      typ,
		rpm:      rpm,
		baseURL:  strings.TrimRight(url, "/"),
		required: append([]string(nil), required...),
		client:   transport.New(log, typ, deps.Transport),
		limiter:  lim,
		policy:   deps.Policy,
		now:      now,
	}
}

func (b *Base) Type() string                  { return b.typ }
func (b *Base) RequestsPerMinute() int        { return b.rpm }
func (b *Base) RequiredCredentials() []string { return append([]string(nil), b.required...) }

func (b *Base) Log() *zap.Logger { return b.log }
func (b *Base) Now() time.Time   { return b.now() }

// BaseURL returns the endpoint root, honouring a per-channel base_url.
func (b *Base) BaseURL(cfg channel.Configuration) string {
	if u := ConfigString(cfg, ConfigBaseURL, ""); u != "" {
		return strings.TrimRight(u, "/")
	}
	return b.baseURL
}

// Call paces and then issues one logical request.
func (b *Base) Call(ctx context.Context, req transport.Request) (*transport.Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return b.client.Do(ctx, req)
}

// Begin validates credentials and opens a batch. When the credentials are
// incomplete it returns a failed result instead, and no request is made.
func (b *Base) Begin(t Target, typ syncresult.Type) (*syncresult.Builder, *syncresult.Result) {
	if err := ValidateCredentials(t.Credentials, b.required); err != nil {
		b.log.Warn("sync rejected",
			zap.String("channel_id", t.ChannelID),
			zap.String("sync_type", string(typ)),
			zap.Error(err),
		)
		return nil, syncresult.Failed(t.ChannelID, t.Property.ID, typ, b.now(), err.Error())
	}
	return syncresult.NewBuilder(t.ChannelID, t.Property.ID, typ, b.policy), nil
}

// Unit records one unit outcome on bld and logs it.
func (b *Base) Unit(bld *syncresult.Builder, t Target, unit string, records int, err error) {
	if err != nil {
		bld.Fail("%s: %v", unit, err)
		b.log.Warn("unit sync failed",
			zap.String("channel_id", t.ChannelID),
			zap.String("unit", unit),
			zap.Error(err),
		)
		return
	}
	bld.SucceedN(records)
	b.log.Info("unit synced",
		zap.String("channel_id", t.ChannelID),
		zap.String("unit", unit),
		zap.Int("records", records),
	)
}

// Skip records a unit left out because its mapping is inactive.
func (b *Base) Skip(bld *syncresult.Builder, t Target, unit string) {
	bld.Warn("%s: mapping inactive, skipped", unit)
	b.log.Info("unit skipped", zap.String("channel_id", t.ChannelID), zap.String("unit", unit))
}

// Finish builds the batch result and logs its summary.
func (b *Base) Finish(bld *syncresult.Builder) *syncresult.Result {
	res := bld.Build(b.now())
	b.log.Info("sync finished",
		zap.String("channel_id", res.ChannelID),
		zap.String("sync_type", string(res.SyncType)),
		zap.Bool("success", res.Success),
		zap.Int("count", res.Count()),
		zap.Int("errors", len(res.Errors)),
	)
	return res
}

// Recover converts a panic in a connector method into a failed result.
// It must be deferred directly.
func (b *Base) Recover(t Target, typ syncresult.Type, out **syncresult.Result) {
	r := recover()
	if r == nil {
		return
	}
	b.log.Error("connector panic recovered",
		zap.String("channel_id", t.ChannelID),
		zap.String("sync_type", string(typ)),
		zap.Any("panic", r),
		zap.Stack("stack"),
	)
	*out = syncresult.Failed(t.ChannelID, t.Property.ID, typ, b.now(), fmt.Sprintf("unexpected error: %v", r))
}

// RecoverTest is Recover for TestConnection.
func (b *Base) RecoverTest(out *syncresult.ConnectionTestResult) {
	r := recover()
	if r == nil {
		return
	}
	b.log.Error("connector panic recovered", zap.String("op", "test_connection"), zap.Any("panic", r), zap.Stack("stack"))
	*out = syncresult.ConnectionTestResult{Success: false, Message: fmt.Sprintf("unexpected error: %v", r)}
}

// RecoverBookings is Recover for GetBookings.
func (b *Base) RecoverBookings(out *[]booking.Booking) {
	r := recover()
	if r == nil {
		return
	}
	b.log.Error("connector panic recovered", zap.String("op", "get_bookings"), zap.Any("panic", r), zap.Stack("stack"))
	*out = []booking.Booking{}
}

// ConnectionFailed logs and builds a failed connection test result.
func (b *Base) ConnectionFailed(err error) syncresult.ConnectionTestResult {
	b.log.Warn("connection test failed", zap.Error(err))
	details := map[string]any{"channel_type": b.typ}
	if code := transport.StatusCode(err); code != 0 {
		details["status_code"] = code
	}
	return syncresult.ConnectionTestResult{Success: false, Message: err.Error(), Details: details}
}

// BookingsFailed logs a booking read failure and returns the empty list.
func (b *Base) BookingsFailed(err error) []booking.Booking {
	b.log.Error("get bookings failed", zap.Error(err))
	return []booking.Booking{}
}

// BookingUpdated turns the outcome of one reservation push into a result.
func (b *Base) BookingUpdated(req BookingUpdateRequest, err error) *syncresult.Result {
	now := b.now()
	if err != nil {
		b.log.Warn("booking update failed",
			zap.String("channel_id", req.ChannelID),
			zap.String("booking_id", req.BookingID),
			zap.Error(err),
		)
		return syncresult.Failed(req.ChannelID, req.Property.ID, syncresult.Booking, now,
			"booking update failed", fmt.Sprintf("booking %s: %v", req.BookingID, err))
	}
	b.log.Info("booking updated", zap.String("channel_id", req.ChannelID), zap.String("booking_id", req.BookingID))
	return &syncresult.Result{
		Success:    true,
		Message:    fmt.Sprintf("booking %s updated", req.BookingID),
		Errors:     []string{},
		Warnings:   []string{},
		Timestamp:  now,
		ChannelID:  req.ChannelID,
		PropertyID: req.Property.ID,
		SyncType:   syncresult.Booking,
	}
}

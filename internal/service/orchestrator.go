package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// Orchestrator
// -----------------------------------------------------------------------------
//
// Runtime model
//   • One call fans a sync out over a property's channels, one result each.
//   • Channels run sequentially unless Parallel is set; units inside a
//     channel are always sequential (the connector owns that loop).
//   • Overlapping syncs of the SAME channel are rejected via a per-ID gate.
//
// Status contract
//   • A channel with a connector moves pending|... → syncing → success|failed.
//   • A channel without a connector, or one already syncing, gets a failed
//     result and its stored status is left untouched.
//   • The terminal status write is detached from the caller's context, so a
//     cancelled request never leaves a channel stuck in syncing.

var (
	ErrPropertyNotFound = repo.ErrPropertyNotFound
	ErrChannelNotFound  = repo.ErrChannelNotFound
	ErrNoRooms          = errors.New("property has no rooms")
	ErrInvalidStatus    = errors.New("invalid channel status")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrInvalidChannel   = errors.New("invalid channel")
)

// PropertyStore is the read side of property data.
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (*property.Property, error)
	ListRooms(ctx context.Context, propertyID string) ([]property.Room, error)
	ListAvailability(ctx context.Context, propertyID string, rng property.DateRange) ([]property.Availability, error)
}

// ChannelStore persists channel configuration and sync status.
type ChannelStore interface {
	Get(ctx context.Context, id string) (*channel.Channel, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*channel.Channel, error)
	ListAll(ctx context.Context) ([]*channel.Channel, error)
	Create(ctx context.Context, ch *channel.Channel) (*channel.Channel, error)
	Update(ctx context.Context, id string, mutate func(ch *channel.Channel) error) (*channel.Channel, error)
	UpdateSyncState(ctx context.Context, id string, st channel.SyncState) error
	Delete(ctx context.Context, id string) error
}

// ResultLog keeps recent results per channel, newest first.
type ResultLog interface {
	Append(ctx context.Context, channelID string, res *syncresult.Result) error
	List(ctx context.Context, channelID string, limit int64) ([]*syncresult.Result, error)
}

// SyncObserver receives one call per finished channel sync.
type SyncObserver interface {
	ObserveSync(channelType string, t syncresult.Type, success bool, elapsed time.Duration)
	SyncStarted(channelType string)
	SyncFinished(channelType string)
}

type nopSyncObserver struct{}

func (nopSyncObserver) ObserveSync(string, syncresult.Type, bool, time.Duration) {}
func (nopSyncObserver) SyncStarted(string)                                       {}
func (nopSyncObserver) SyncFinished(string)                                      {}

type OrchestratorOptions struct {
	// Parallel syncs a property's channels concurrently, at most MaxParallel
	// at a time. Result order still follows channel order.
	Parallel    bool
	MaxParallel int

	// History is optional; nil disables the per-channel result log.
	History ResultLog
	Metrics SyncObserver

	// StatusWriteTimeout bounds the detached terminal status write; default 5s.
	StatusWriteTimeout time.Duration

	Now func() time.Time
}

func (o *OrchestratorOptions) setDefaults() {
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if o.Metrics == nil {
		o.Metrics = nopSyncObserver{}
	}
	if o.StatusWriteTimeout <= 0 {
		o.StatusWriteTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Orchestrator coordinates property data, channel configuration and the
// connector registry.
type Orchestrator struct {
	log        *zap.Logger
	properties PropertyStore
	channels   ChannelStore
	registry   *connector.Registry
	opts       OrchestratorOptions

	gates gates
}

func NewOrchestrator(log *zap.Logger, properties PropertyStore, channels ChannelStore, registry *connector.Registry, opts OrchestratorOptions) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if registry == nil {
		registry = connector.NewRegistry()
	}
	opts.setDefaults()
	return &Orchestrator{
		log:        log.Named("orchestrator"),
		properties: properties,
		channels:   channels,
		registry:   registry,
		opts:       opts,
	}
}

func (o *Orchestrator) now() time.Time { return o.opts.Now().UTC() }

// syncFunc invokes one connector operation for one channel.
type syncFunc func(ctx context.Context, c connector.Connector, t connector.Target) *syncresult.Result

// SyncInventory pushes room definitions to the property's channels.
func (o *Orchestrator) SyncInventory(ctx context.Context, propertyID string, channelIDs []string) ([]*syncresult.Result, error) {
	p, rooms, err := o.loadRooms(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return o.syncAll(ctx, p, channelIDs, syncresult.Inventory, func(ctx context.Context, c connector.Connector, t connector.Target) *syncresult.Result {
		return c.SyncInventory(ctx, connector.InventoryRequest{Target: t, Rooms: rooms})
	})
}

// SyncRates pushes base rates over the forward horizon.
func (o *Orchestrator) SyncRates(ctx context.Context, propertyID string, channelIDs []string) ([]*syncresult.Result, error) {
	p, rooms, err := o.loadRooms(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return o.syncAll(ctx, p, channelIDs, syncresult.Rates, func(ctx context.Context, c connector.Connector, t connector.Target) *syncresult.Result {
		return c.SyncRates(ctx, connector.RatesRequest{Target: t, Rooms: rooms})
	})
}

// SyncAvailability pushes per-day availability within rng; nil means today
// through the default horizon.
func (o *Orchestrator) SyncAvailability(ctx context.Context, propertyID string, channelIDs []string, rng *property.DateRange) ([]*syncresult.Result, error) {
	window := property.DefaultRange(o.now())
	if rng != nil {
		if err := rng.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		window = property.DateRange{Start: property.Day(rng.Start), End: property.Day(rng.End)}
	}

	p, rooms, err := o.loadRooms(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	records, err := o.properties.ListAvailability(ctx, propertyID, window)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return o.syncAll(ctx, p, channelIDs, syncresult.Availability, func(ctx context.Context, c connector.Connector, t connector.Target) *syncresult.Result {
		return c.SyncAvailability(ctx, connector.AvailabilityRequest{
			Target:       t,
			Rooms:        rooms,
			Availability: records,
			DateRange:    window,
		})
	})
}

// Sync dispatches on a sync type; used by the scheduler and the HTTP API.
func (o *Orchestrator) Sync(ctx context.Context, t syncresult.Type, propertyID string, channelIDs []string, rng *property.DateRange) ([]*syncresult.Result, error) {
	switch t {
	case syncresult.Inventory:
		return o.SyncInventory(ctx, propertyID, channelIDs)
	case syncresult.Rates:
		return o.SyncRates(ctx, propertyID, channelIDs)
	case syncresult.Availability:
		return o.SyncAvailability(ctx, propertyID, channelIDs, rng)
	default:
		return nil, fmt.Errorf("unsupported sync type %q", t)
	}
}

func (o *Orchestrator) loadRooms(ctx context.Context, propertyID string) (*property.Property, []property.Room, error) {
	p, err := o.properties.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, ErrPropertyNotFound) {
			return nil, nil, fmt.Errorf("property %s: %w", propertyID, ErrPropertyNotFound)
		}
		return nil, nil, fmt.Errorf("get property: %w", err)
	}
	rooms, err := o.properties.ListRooms(ctx, propertyID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(rooms) == 0 {
		return nil, nil, fmt.Errorf("property %s: %w", propertyID, ErrNoRooms)
	}
	return p, rooms, nil
}

// selectChannels lists the property's channels in stored order. Without ids
// only active channels are returned; with ids, exactly the named channels
// that belong to the property, whatever their status.
func (o *Orchestrator) selectChannels(ctx context.Context, propertyID string, ids []string) ([]*channel.Channel, error) {
	all, err := o.channels.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	out := make([]*channel.Channel, 0, len(all))
	if len(ids) == 0 {
		for _, ch := range all {
			if ch.Status == channel.StatusActive {
				out = append(out, ch)
			}
		}
		return out, nil
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, ch := range all {
		if _, ok := want[ch.ID]; ok {
			out = append(out, ch)
			delete(want, ch.ID)
		}
	}
	for id := range want {
		o.log.Warn("requested channel not found on property",
			zap.String("property_id", propertyID),
			zap.String("channel_id", id),
		)
	}
	return out, nil
}

func (o *Orchestrator) syncAll(ctx context.Context, p *property.Property, channelIDs []string, typ syncresult.Type, fn syncFunc) ([]*syncresult.Result, error) {
	chans, err := o.selectChannels(ctx, p.ID, channelIDs)
	if err != nil {
		return nil, err
	}

	results := make([]*syncresult.Result, len(chans))
	if !o.opts.Parallel || len(chans) < 2 {
		for i, ch := range chans {
			results[i] = o.syncChannel(ctx, *p, ch, typ, fn)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.opts.MaxParallel)
		for i, ch := range chans {
			g.Go(func() error {
				results[i] = o.syncChannel(ctx, *p, ch, typ, fn)
				return nil
			})
		}
		_ = g.Wait() // per-channel failures are results, never errors
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	o.log.Info("sync finished",
		zap.String("property_id", p.ID),
		zap.String("sync_type", string(typ)),
		zap.Int("channels", len(results)),
		zap.Int("succeeded", succeeded),
	)
	return results, nil
}

// syncChannel runs one channel end to end and never returns nil.
func (o *Orchestrator) syncChannel(ctx context.Context, p property.Property, ch *channel.Channel, typ syncresult.Type, fn syncFunc) *syncresult.Result {
	log := o.log.With(
		zap.String("channel_id", ch.ID),
		zap.String("channel_type", ch.Type),
		zap.String("sync_type", string(typ)),
	)

	conn, ok := o.registry.Lookup(ch.Type)
	if !ok {
		log.Warn("no connector registered for channel type")
		return syncresult.Failed(ch.ID, ch.PropertyID, typ, o.now(), connector.ErrNotImplemented.Error())
	}

	unlock, err := o.gates.tryLock(ch.ID)
	if err != nil {
		log.Warn("sync skipped", zap.Error(err))
		return syncresult.Failed(ch.ID, ch.PropertyID, typ, o.now(), ErrLocked.Error())
	}
	defer unlock()

	start := time.Now()
	o.opts.Metrics.SyncStarted(ch.Type)
	defer o.opts.Metrics.SyncFinished(ch.Type)

	var res *syncresult.Result
	if err := o.channels.UpdateSyncState(ctx, ch.ID, channel.SyncState{
		SyncStatus:   channel.SyncSyncing,
		ErrorMessage: ch.ErrorMessage,
	}); err != nil {
		log.Error("mark syncing failed", zap.Error(err))
		res = syncresult.Failed(ch.ID, ch.PropertyID, typ, o.now(), fmt.Sprintf("mark syncing: %v", err))
	} else {
		res = o.invoke(ctx, log, conn, o.target(p, ch), typ, fn)
	}

	res = o.finish(ctx, log, ch, res)
	o.opts.Metrics.ObserveSync(ch.Type, typ, res.Success, time.Since(start))
	return res
}

func (o *Orchestrator) target(p property.Property, ch *channel.Channel) connector.Target {
	c := ch.Clone()
	return connector.Target{
		ChannelID:     c.ID,
		Property:      p,
		Credentials:   c.Credentials,
		Configuration: c.Configuration,
		Mappings:      c.Mappings,
	}
}

// invoke calls the connector and converts a panic or a nil result into a
// failed result.
func (o *Orchestrator) invoke(ctx context.Context, log *zap.Logger, c connector.Connector, t connector.Target, typ syncresult.Type, fn syncFunc) (res *syncresult.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("connector panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = syncresult.Failed(t.ChannelID, t.Property.ID, typ, o.now(), fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	res = fn(ctx, c, t)
	if res == nil {
		return syncresult.Failed(t.ChannelID, t.Property.ID, typ, o.now(), "connector returned no result")
	}
	return res
}

// finish writes the terminal status and appends the result to history.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, ch *channel.Channel, res *syncresult.Result) *syncresult.Result {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.StatusWriteTimeout)
	defer cancel()

	now := o.now()
	st := channel.SyncState{
		SyncStatus: channel.SyncSuccess,
		LastSync:   &now,
		LastResult: res,
	}
	if !res.Success {
		st.SyncStatus = channel.SyncFailed
		st.ErrorMessage = errorMessage(res)
	}

	if err := o.channels.UpdateSyncState(wctx, ch.ID, st); err != nil {
		log.Error("write sync status failed", zap.Error(err))
		out := *res
		out.Warnings = append(append([]string{}, res.Warnings...), fmt.Sprintf("status not persisted: %v", err))
		res = &out
	}

	if o.opts.History != nil {
		if err := o.opts.History.Append(wctx, ch.ID, res); err != nil {
			log.Warn("append history failed", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Bool("success", res.Success),
		zap.Int("count", res.Count()),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
	}
	if res.Success {
		log.Info("channel synced", fields...)
	} else {
		log.Warn("channel sync failed", append(fields, zap.String("message", res.Message))...)
	}
	return res
}

// errorMessage condenses a failed result into the channel's error field.
func errorMessage(res *syncresult.Result) string {
	switch len(res.Errors) {
	case 0:
		return res.Message
	case 1:
		return res.Errors[0]
	default:
		return fmt.Sprintf("%s (and %d more)", res.Errors[0], len(res.Errors)-1)
	}
}

// -----------------------------------------------------------------------------
// Channel administration
// -----------------------------------------------------------------------------

// TestConnection tests a channel with creds, or with its stored
// credentials when creds is nil, against the channel's configured endpoint.
// It never changes stored state.
func (o *Orchestrator) TestConnection(ctx context.Context, channelID string, creds channel.Credentials) (res syncresult.ConnectionTestResult, err error) {
	ch, err := o.channels.Get(ctx, channelID)
	if err != nil {
		return syncresult.ConnectionTestResult{}, err
	}
	conn, ok := o.registry.Lookup(ch.Type)
	if !ok {
		return syncresult.ConnectionTestResult{
			Success: false,
			Message: connector.ErrNotImplemented.Error(),
			Details: map[string]any{"channel_type": ch.Type},
		}, nil
	}
	if creds == nil {
		creds = ch.Credentials
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("connection test panicked", zap.String("channel_id", channelID), zap.Any("panic", r))
			res = syncresult.ConnectionTestResult{Success: false, Message: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()
	return conn.TestConnection(ctx, creds, ch.Configuration), nil
}

// GetSyncStatus returns the status view of every channel of a property,
// keyed by channel id.
func (o *Orchestrator) GetSyncStatus(ctx context.Context, propertyID string) (map[string]channel.StatusView, error) {
	chans, err := o.channels.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make(map[string]channel.StatusView, len(chans))
	for _, ch := range chans {
		out[ch.ID] = ch.AsStatusView()
	}
	return out, nil
}

// ListChannels returns a property's channels in creation order.
func (o *Orchestrator) ListChannels(ctx context.Context, propertyID string) ([]*channel.Channel, error) {
	return o.channels.ListByProperty(ctx, propertyID)
}

// CreateChannel validates and stores a new channel for a property.
func (o *Orchestrator) CreateChannel(ctx context.Context, ch *channel.Channel) (*channel.Channel, error) {
	if ch.Status == "" {
		ch.Status = channel.StatusInactive
	}
	if err := ch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChannel, err)
	}
	if conn, ok := o.registry.Lookup(ch.Type); ok && len(ch.Credentials) > 0 {
		if err := connector.ValidateCredentials(ch.Credentials, conn.RequiredCredentials()); err != nil {
			return nil, err
		}
	}
	ch.ID = ""
	ch.LastSync, ch.LastResult, ch.ErrorMessage, ch.SyncStatus = nil, nil, "", channel.SyncPending
	return o.channels.Create(ctx, ch)
}

// DeleteChannel removes a channel that has never synced; see repo.ErrHasHistory.
func (o *Orchestrator) DeleteChannel(ctx context.Context, propertyID, channelID string) (bool, error) {
	if _, found, err := o.owned(ctx, propertyID, channelID); err != nil || !found {
		return false, err
	}
	unlock := o.gates.lock(channelID)
	defer unlock()
	if err := o.channels.Delete(ctx, channelID); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return false, nil
		}
		return false, err
	}
	// Once deleted, the per-id gate can be discarded.
	o.gates.forget(channelID)
	return true, nil
}

// owned fetches a channel and checks it belongs to the property.
func (o *Orchestrator) owned(ctx context.Context, propertyID, channelID string) (*channel.Channel, bool, error) {
	ch, err := o.channels.Get(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if ch.PropertyID != propertyID {
		return nil, false, nil
	}
	return ch, true, nil
}

// update applies mutate to an owned channel; false, nil when the pair does
// not exist.
func (o *Orchestrator) update(ctx context.Context, propertyID, channelID string, mutate func(ch *channel.Channel) error) (bool, error) {
	if _, found, err := o.owned(ctx, propertyID, channelID); err != nil || !found {
		return false, err
	}
	_, err := o.channels.Update(ctx, channelID, func(ch *channel.Channel) error {
		if ch.PropertyID != propertyID {
			return ErrChannelNotFound
		}
		return mutate(ch)
	})
	if errors.Is(err, ErrChannelNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateChannelCredentials replaces a channel's credentials after checking
// them against the connector's required keys.
func (o *Orchestrator) UpdateChannelCredentials(ctx context.Context, propertyID, channelID string, creds channel.Credentials) (bool, error) {
	return o.update(ctx, propertyID, channelID, func(ch *channel.Channel) error {
		if conn, ok := o.registry.Lookup(ch.Type); ok {
			if err := connector.ValidateCredentials(creds, conn.RequiredCredentials()); err != nil {
				return err
			}
		}
		ch.Credentials = make(channel.Credentials, len(creds))
		for k, v := range creds {
			ch.Credentials[k] = v
		}
		return nil
	})
}

// UpdateChannelStatus sets the administrative status. Non-nil configuration
// keys are merged over the stored ones; a nil value removes the key.
func (o *Orchestrator) UpdateChannelStatus(ctx context.Context, propertyID, channelID string, status channel.Status, configuration channel.Configuration) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return o.update(ctx, propertyID, channelID, func(ch *channel.Channel) error {
		ch.Status = status
		if len(configuration) > 0 {
			if ch.Configuration == nil {
				ch.Configuration = channel.Configuration{}
			}
			for k, v := range configuration {
				if v == nil {
					delete(ch.Configuration, k)
					continue
				}
				ch.Configuration[k] = v
			}
		}
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidChannel, err)
		}
		return nil
	})
}

// GetChannelMappings returns a channel's mappings; false when the pair does
// not exist.
func (o *Orchestrator) GetChannelMappings(ctx context.Context, propertyID, channelID string) (channel.Mappings, bool, error) {
	ch, found, err := o.owned(ctx, propertyID, channelID)
	if err != nil || !found {
		return channel.Mappings{}, found, err
	}
	return ch.Mappings.Clone(), true, nil
}

// UpdateChannelMappings swaps in the lists present in u.
func (o *Orchestrator) UpdateChannelMappings(ctx context.Context, propertyID, channelID string, u channel.MappingsUpdate) (bool, error) {
	return o.update(ctx, propertyID, channelID, func(ch *channel.Channel) error {
		m := ch.Mappings.Apply(u)
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: invalid mappings: %v", ErrInvalidChannel, err)
		}
		ch.Mappings = m
		return nil
	})
}

// -----------------------------------------------------------------------------
// Bookings and history
// -----------------------------------------------------------------------------

// GetBookings reads reservations from the channel. Channel failures yield an
// empty list; ErrChannelNotFound when the pair does not exist.
func (o *Orchestrator) GetBookings(ctx context.Context, propertyID, channelID string, rng property.DateRange) ([]booking.Booking, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	ch, found, err := o.owned(ctx, propertyID, channelID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrChannelNotFound)
	}
	conn, ok := o.registry.Lookup(ch.Type)
	if !ok {
		return nil, fmt.Errorf("channel type %q: %w", ch.Type, connector.ErrNotImplemented)
	}

	out := conn.GetBookings(ctx, ch.Credentials, ch.Configuration, rng)
	if out == nil {
		out = []booking.Booking{}
	}
	return out, nil
}

// UpdateBooking pushes a status/notes change to a channel reservation and
// records the outcome in the channel's history. bookingID may be the id
// GetBookings returned or the channel's own reservation id.
func (o *Orchestrator) UpdateBooking(ctx context.Context, propertyID, channelID, bookingID string, u booking.Update) (*syncresult.Result, error) {
	ch, found, err := o.owned(ctx, propertyID, channelID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrChannelNotFound)
	}
	bookingID = booking.ChannelBookingID(ch.Type, bookingID)
	log := o.log.With(zap.String("channel_id", ch.ID), zap.String("booking_id", bookingID))

	conn, ok := o.registry.Lookup(ch.Type)
	if !ok {
		return syncresult.Failed(ch.ID, ch.PropertyID, syncresult.Booking, o.now(), connector.ErrNotImplemented.Error()), nil
	}

	p := property.Property{ID: propertyID}
	if got, err := o.properties.GetProperty(ctx, propertyID); err == nil {
		p = *got
	}
	res := o.invoke(ctx, log, conn, o.target(p, ch), syncresult.Booking, func(ctx context.Context, c connector.Connector, t connector.Target) *syncresult.Result {
		return c.UpdateBooking(ctx, connector.BookingUpdateRequest{Target: t, BookingID: bookingID, Update: u})
	})

	if o.opts.History != nil {
		if err := o.opts.History.Append(context.WithoutCancel(ctx), ch.ID, res); err != nil {
			log.Warn("append history failed", zap.Error(err))
		}
	}
	return res, nil
}

// GetSyncHistory returns up to limit recent results, newest first.
func (o *Orchestrator) GetSyncHistory(ctx context.Context, channelID string, limit int64) ([]*syncresult.Result, error) {
	if o.opts.History == nil {
		return []*syncresult.Result{}, nil
	}
	if _, err := o.channels.Get(ctx, channelID); err != nil {
		return nil, err
	}
	return o.opts.History.List(ctx, channelID, limit)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// --- property store ---------------------------------------------------------

type fakeProperties struct {
	props        map[string]property.Property
	rooms        map[string][]property.Room
	availability map[string][]property.Availability
	lastRange    property.DateRange
}

func newFakeProperties() *fakeProperties {
	return &fakeProperties{
		props:        map[string]property.Property{},
		rooms:        map[string][]property.Room{},
		availability: map[string][]property.Availability{},
	}
}

func (f *fakeProperties) add(p property.Property, rooms ...property.Room) {
	f.props[p.ID] = p
	f.rooms[p.ID] = rooms
}

func (f *fakeProperties) GetProperty(_ context.Context, id string) (*property.Property, error) {
	p, ok := f.props[id]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return &p, nil
}

func (f *fakeProperties) ListRooms(_ context.Context, propertyID string) ([]property.Room, error) {
	return append([]property.Room{}, f.rooms[propertyID]...), nil
}

func (f *fakeProperties) ListAvailability(_ context.Context, propertyID string, rng property.DateRange) ([]property.Availability, error) {
	f.lastRange = rng
	out := []property.Availability{}
	for _, a := range f.availability[propertyID] {
		if rng.Contains(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- channel store ----------------------------------------------------------

type fakeChannels struct {
	mu     sync.Mutex
	byID   map[string]*channel.Channel
	order  []string
	seq    int
	writes map[string][]channel.SyncStatus

	// failSyncState makes every UpdateSyncState fail.
	failSyncState error
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{byID: map[string]*channel.Channel{}, writes: map[string][]channel.SyncStatus{}}
}

func (f *fakeChannels) put(ch *channel.Channel) *channel.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch.SyncStatus == "" {
		ch.SyncStatus = channel.SyncPending
	}
	f.byID[ch.ID] = ch.Clone()
	f.order = append(f.order, ch.ID)
	return ch
}

func (f *fakeChannels) status(id string) channel.SyncStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].SyncStatus
}

func (f *fakeChannels) history(id string) []channel.SyncStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.SyncStatus{}, f.writes[id]...)
}

func (f *fakeChannels) Get(_ context.Context, id string) (*channel.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.byID[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch.Clone(), nil
}

func (f *fakeChannels) ListByProperty(_ context.Context, propertyID string) ([]*channel.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*channel.Channel{}
	for _, id := range f.order {
		if ch, ok := f.byID[id]; ok && ch.PropertyID == propertyID {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (f *fakeChannels) ListAll(_ context.Context) ([]*channel.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*channel.Channel{}
	for _, id := range f.order {
		if ch, ok := f.byID[id]; ok {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (f *fakeChannels) Create(_ context.Context, ch *channel.Channel) (*channel.Channel, error) {
	f.mu.Lock()
	f.seq++
	out := ch.Clone()
	if out.ID == "" {
		out.ID = fmt.Sprintf("ch-%d", f.seq)
	}
	f.mu.Unlock()
	return f.put(out), nil
}

func (f *fakeChannels) Update(_ context.Context, id string, mutate func(ch *channel.Channel) error) (*channel.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	f.byID[id] = next
	return next.Clone(), nil
}

func (f *fakeChannels) UpdateSyncState(ctx context.Context, id string, st channel.SyncState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failSyncState != nil {
		return f.failSyncState
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.byID[id]
	if !ok {
		return ErrChannelNotFound
	}
	st.Apply(ch)
	f.writes[id] = append(f.writes[id], st.SyncStatus)
	return nil
}

func (f *fakeChannels) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return ErrChannelNotFound
	}
	delete(f.byID, id)
	return nil
}

// --- history ----------------------------------------------------------------

type fakeHistory struct {
	mu      sync.Mutex
	results map[string][]*syncresult.Result
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{results: map[string][]*syncresult.Result{}}
}

func (f *fakeHistory) Append(ctx context.Context, channelID string, res *syncresult.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[channelID] = append([]*syncresult.Result{res}, f.results[channelID]...)
	return nil
}

func (f *fakeHistory) List(_ context.Context, channelID string, limit int64) ([]*syncresult.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.results[channelID]
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return append([]*syncresult.Result{}, all...), nil
}

// --- connector --------------------------------------------------------------

// fakeConnector succeeds with one record per room unless a hook overrides it.
type fakeConnector struct {
	typ      string
	required []string

	inventory    func(ctx context.Context, req connector.InventoryRequest) *syncresult.Result
	availability func(ctx context.Context, req connector.AvailabilityRequest) *syncresult.Result

	mu         sync.Mutex
	calls      int
	testCreds  channel.Credentials
	testConfig channel.Configuration
	bookings   []booking.Booking
	updated    []connector.BookingUpdateRequest
}

func newFakeConnector(typ string) *fakeConnector {
	return &fakeConnector{typ: typ, required: []string{"api_key"}}
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeConnector) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeConnector) Type() string                  { return f.typ }
func (f *fakeConnector) RequestsPerMinute() int        { return 60 }
func (f *fakeConnector) RequiredCredentials() []string { return f.required }

func (f *fakeConnector) TestConnection(_ context.Context, creds channel.Credentials, cfg channel.Configuration) syncresult.ConnectionTestResult {
	f.mu.Lock()
	f.testCreds = creds
	f.testConfig = cfg
	f.mu.Unlock()
	if creds["api_key"] == "" {
		return syncresult.ConnectionTestResult{Success: false, Message: "missing api_key"}
	}
	return syncresult.ConnectionTestResult{Success: true, Message: "connected"}
}

func succeedAll(t connector.Target, typ syncresult.Type, n int) *syncresult.Result {
	b := syncresult.NewBuilder(t.ChannelID, t.Property.ID, typ, syncresult.AtLeastOne)
	for i := 0; i < n; i++ {
		b.Succeed()
	}
	return b.Build(fixedNow)
}

func (f *fakeConnector) SyncInventory(ctx context.Context, req connector.InventoryRequest) *syncresult.Result {
	f.hit()
	if f.inventory != nil {
		return f.inventory(ctx, req)
	}
	return succeedAll(req.Target, syncresult.Inventory, len(req.Rooms))
}

func (f *fakeConnector) SyncRates(_ context.Context, req connector.RatesRequest) *syncresult.Result {
	f.hit()
	return succeedAll(req.Target, syncresult.Rates, len(req.Rooms))
}

func (f *fakeConnector) SyncAvailability(ctx context.Context, req connector.AvailabilityRequest) *syncresult.Result {
	f.hit()
	if f.availability != nil {
		return f.availability(ctx, req)
	}
	return succeedAll(req.Target, syncresult.Availability, len(req.Availability))
}

func (f *fakeConnector) GetBookings(context.Context, channel.Credentials, channel.Configuration, property.DateRange) []booking.Booking {
	f.hit()
	return f.bookings
}

func (f *fakeConnector) UpdateBooking(_ context.Context, req connector.BookingUpdateRequest) *syncresult.Result {
	f.hit()
	f.mu.Lock()
	f.updated = append(f.updated, req)
	f.mu.Unlock()
	return &syncresult.Result{
		Success:    true,
		Message:    "booking updated",
		Errors:     []string{},
		Warnings:   []string{},
		Timestamp:  fixedNow,
		ChannelID:  req.ChannelID,
		PropertyID: req.Property.ID,
		SyncType:   syncresult.Booking,
	}
}

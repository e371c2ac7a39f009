package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/google/uuid"
)

// Memory is a process-local store with the same contracts as the Redis
// repositories (properties, channels and history in one value). Used by
// sync-once runs that have no Redis, and by tests.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	properties   map[string]property.Property
	rooms        map[string][]property.Room
	availability map[string]map[string]map[int64]property.Availability // property -> room -> day
	channels     map[string]*channel.Channel
	history      map[string][]*syncresult.Result
	historySize  int
}

func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		properties:   map[string]property.Property{},
		rooms:        map[string][]property.Room{},
		availability: map[string]map[string]map[int64]property.Availability{},
		channels:     map[string]*channel.Channel{},
		history:      map[string][]*syncresult.Result{},
		historySize:  DefaultHistorySize,
	}
}

// --- properties ---

func (m *Memory) UpsertProperty(_ context.Context, p property.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = p
	return nil
}

func (m *Memory) GetProperty(_ context.Context, id string) (*property.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return &p, nil
}

func (m *Memory) ListPropertyIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.properties))
	for id := range m.properties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) SetRooms(_ context.Context, propertyID string, rooms []property.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[propertyID] = append([]property.Room{}, rooms...)
	return nil
}

func (m *Memory) ListRooms(_ context.Context, propertyID string) ([]property.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]property.Room{}, m.rooms[propertyID]...), nil
}

func (m *Memory) UpsertAvailability(_ context.Context, propertyID string, records []property.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRoom, ok := m.availability[propertyID]
	if !ok {
		byRoom = map[string]map[int64]property.Availability{}
		m.availability[propertyID] = byRoom
	}
	for _, a := range records {
		a.Date = property.Day(a.Date)
		days, ok := byRoom[a.RoomID]
		if !ok {
			days = map[int64]property.Availability{}
			byRoom[a.RoomID] = days
		}
		days[a.Date.Unix()] = a
	}
	return nil
}

// ListAvailability matches PropertyRepository: room order, then day order.
func (m *Memory) ListAvailability(_ context.Context, propertyID string, rng property.DateRange) ([]property.Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []property.Availability{}
	for _, room := range m.rooms[propertyID] {
		days := m.availability[propertyID][room.ID]
		keys := make([]int64, 0, len(days))
		for k := range days {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			if a := days[k]; rng.Contains(a.Date) {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// --- channels ---

func (m *Memory) Create(_ context.Context, ch *channel.Channel) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := ch.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if _, exists := m.channels[out.ID]; exists {
		return nil, ErrChannelExists
	}
	if out.SyncStatus == "" {
		out.SyncStatus = channel.SyncPending
	}
	if out.Status == "" {
		out.Status = channel.StatusInactive
	}
	now := m.now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now
	m.channels[out.ID] = out
	return out.Clone(), nil
}

func (m *Memory) Upsert(_ context.Context, ch *channel.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*channel.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch.Clone(), nil
}

func (m *Memory) ListByProperty(_ context.Context, propertyID string) ([]*channel.Channel, error) {
	return m.list(func(ch *channel.Channel) bool { return ch.PropertyID == propertyID }), nil
}

func (m *Memory) ListAll(_ context.Context) ([]*channel.Channel, error) {
	return m.list(func(*channel.Channel) bool { return true }), nil
}

func (m *Memory) list(keep func(*channel.Channel) bool) []*channel.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*channel.Channel{}
	for _, ch := range m.channels {
		if keep(ch) {
			out = append(out, ch.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update applies mutate under the store lock; a mutate error aborts without writing.
func (m *Memory) Update(_ context.Context, id string, mutate func(ch *channel.Channel) error) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.UpdatedAt = m.now().UTC()
	m.channels[id] = next
	return next.Clone(), nil
}

func (m *Memory) UpdateSyncState(ctx context.Context, id string, st channel.SyncState) error {
	_, err := m.Update(ctx, id, func(ch *channel.Channel) error {
		st.Apply(ch)
		return nil
	})
	return err
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return ErrChannelNotFound
	}
	if len(m.history[id]) > 0 || ch.LastSync != nil {
		return ErrHasHistory
	}
	delete(m.channels, id)
	return nil
}

// --- history ---

func (m *Memory) SetHistorySize(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.historySize = n
	m.mu.Unlock()
}

func (m *Memory) Append(_ context.Context, channelID string, res *syncresult.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]*syncresult.Result{res}, m.history[channelID]...)
	if len(list) > m.historySize {
		list = list[:m.historySize]
	}
	m.history[channelID] = list
	return nil
}

func (m *Memory) List(_ context.Context, channelID string, limit int64) ([]*syncresult.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.history[channelID]
	if limit > 0 && int64(len(list)) > limit {
		list = list[:limit]
	}
	return append([]*syncresult.Result{}, list...), nil
}

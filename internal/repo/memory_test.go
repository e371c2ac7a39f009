package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Channels(t *testing.T) {
	m := NewMemory()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { tick = tick.Add(time.Second); return tick }
	ctx := context.Background()

	a, err := m.Create(ctx, newChannel("p1", "A"))
	require.NoError(t, err)
	b, err := m.Create(ctx, newChannel("p1", "B"))
	require.NoError(t, err)
	_, err = m.Create(ctx, newChannel("p2", "C"))
	require.NoError(t, err)

	list, err := m.ListByProperty(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{a.ID, b.ID}, []string{list[0].ID, list[1].ID})

	dup := newChannel("p1", "dup")
	dup.ID = a.ID
	_, err = m.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrChannelExists)

	_, err = m.Update(ctx, a.ID, func(ch *channel.Channel) error { return errors.New("nope") })
	assert.Error(t, err)
	got, _ := m.Get(ctx, a.ID)
	assert.Equal(t, "A", got.Name)

	now := tick
	require.NoError(t, m.UpdateSyncState(ctx, a.ID, channel.SyncState{SyncStatus: channel.SyncSuccess, LastSync: &now}))
	assert.ErrorIs(t, m.Delete(ctx, a.ID), ErrHasHistory)
	require.NoError(t, m.Delete(ctx, b.ID))
	assert.ErrorIs(t, m.Delete(ctx, b.ID), ErrChannelNotFound)
	assert.ErrorIs(t, m.UpdateSyncState(ctx, "missing", channel.SyncState{}), ErrChannelNotFound)
}

func TestMemory_Availability(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC) }

	_, err := m.GetProperty(ctx, "p1")
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	require.NoError(t, m.UpsertProperty(ctx, property.Property{ID: "p1"}))
	require.NoError(t, m.SetRooms(ctx, "p1", []property.Room{{ID: "r2"}, {ID: "r1"}}))
	require.NoError(t, m.UpsertAvailability(ctx, "p1", []property.Availability{
		{RoomID: "r1", Date: day(3), Available: 1},
		{RoomID: "r1", Date: day(1), Available: 5},
		{RoomID: "r2", Date: day(2), Available: 2},
	}))
	require.NoError(t, m.UpsertAvailability(ctx, "p1", []property.Availability{
		{RoomID: "r1", Date: day(1).Add(8 * time.Hour), Available: 4},
	}))

	got, err := m.ListAvailability(ctx, "p1", property.DateRange{Start: day(1), End: day(2)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].RoomID)
	assert.Equal(t, 4, got[1].Available)
}

func TestMemory_HistoryCapped(t *testing.T) {
	m := NewMemory()
	m.SetHistorySize(2)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Append(ctx, "c", &syncresult.Result{SyncedRates: i}))
	}
	list, err := m.List(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].SyncedRates)
}

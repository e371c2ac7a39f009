package main

import (
	"context"
	"testing"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBulkDelete(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemory()
	orch := service.NewOrchestrator(nil, mem, mem, connector.NewRegistry(), service.OrchestratorOptions{History: mem})

	add := func(id string, st channel.Status) {
		require.NoError(t, mem.Upsert(ctx, &channel.Channel{ID: id, PropertyID: "p1", Type: "x", Name: id, Status: st}))
	}
	add("a", channel.StatusInactive)
	add("b", channel.StatusInactive)
	add("c", channel.StatusActive)
	synced := time.Now()
	require.NoError(t, mem.UpdateSyncState(ctx, "b", channel.SyncState{SyncStatus: channel.SyncSuccess, LastSync: &synced}))

	deleted, skipped, err := bulkDelete(ctx, zap.NewNop(), orch, "p1", channel.StatusInactive, true)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, skipped)
	left, _ := mem.ListByProperty(ctx, "p1")
	assert.Len(t, left, 3)

	deleted, skipped, err = bulkDelete(ctx, zap.NewNop(), orch, "p1", channel.StatusInactive, false)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, skipped)

	left, _ = mem.ListByProperty(ctx, "p1")
	ids := []string{}
	for _, ch := range left {
		ids = append(ids, ch.ID)
	}
	assert.ElementsMatch(t, []string{"b", "c"}, ids)
}

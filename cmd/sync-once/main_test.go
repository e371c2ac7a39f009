package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edirooss/chansync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedJSON = `{
	"properties": [{"id": "p1", "name": "Harbour Inn", "rooms": [{"id": "r1", "base_rate": 90}]}],
	"channels": [
		{"id": "c1", "property_id": "p1", "type": "legacy_ota", "name": "Legacy", "status": "active"},
		{"id": "c2", "property_id": "p1", "type": "legacy_ota", "name": "Paused", "status": "inactive"}
	]
}`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o644))
	return path
}

func TestRun_SeedOnly(t *testing.T) {
	seed := writeSeed(t)
	missingConfig := filepath.Join(t.TempDir(), "none.yaml")

	results, err := run(context.Background(), zap.NewNop(), options{
		configPath: missingConfig,
		propertyID: "p1",
		syncType:   "inventory",
		seed:       seed,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChannelID)
	assert.False(t, results[0].Success)
	assert.Equal(t, "connector not implemented", results[0].Message)

	results, err = run(context.Background(), zap.NewNop(), options{
		configPath: missingConfig,
		propertyID: "p1",
		syncType:   "rates",
		channels:   "c2, c1",
		seed:       seed,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRun_Errors(t *testing.T) {
	seed := writeSeed(t)
	missingConfig := filepath.Join(t.TempDir(), "none.yaml")
	base := options{configPath: missingConfig, propertyID: "p1", syncType: "availability", seed: seed}

	o := base
	o.syncType = "booking"
	_, err := run(context.Background(), zap.NewNop(), o)
	assert.Error(t, err)

	o = base
	o.propertyID = "nope"
	_, err = run(context.Background(), zap.NewNop(), o)
	assert.ErrorIs(t, err, service.ErrPropertyNotFound)

	o = base
	o.syncType, o.start, o.end = "rates", "2026-05-01", "2026-05-02"
	_, err = run(context.Background(), zap.NewNop(), o)
	assert.Error(t, err)

	o = base
	o.start, o.end = "2026-05-03", "2026-05-01"
	_, err = run(context.Background(), zap.NewNop(), o)
	assert.ErrorIs(t, err, service.ErrInvalidRange)

	o = base
	o.seed = ""
	o.configPath = missingConfig
	_, err = run(context.Background(), zap.NewNop(), o)
	assert.Error(t, err, "a missing config is fatal without -seed")
}

func TestSplitIDs(t *testing.T) {
	assert.Nil(t, splitIDs(""))
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a,,b ,"))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/pkg/jsonx"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrInvalidSeed is returned when the seed file is missing required fields.
var ErrInvalidSeed = errors.New("invalid seed")

// SeedProperties and SeedChannels are the write paths the seed loader needs;
// both the Redis repositories and repo.Memory implement them.
type SeedProperties interface {
	UpsertProperty(ctx context.Context, p property.Property) error
	SetRooms(ctx context.Context, propertyID string, rooms []property.Room) error
	UpsertAvailability(ctx context.Context, propertyID string, records []property.Availability) error
}

type SeedChannels interface {
	Get(ctx context.Context, id string) (*channel.Channel, error)
	Upsert(ctx context.Context, ch *channel.Channel) error
}

// SeedSyncService seeds the stores from a JSON file on boot and re-applies it on changes.
// StartSeedSync kicks off the initial load and a debounced fs watcher; everything else is internal.
type SeedSyncService struct {
	log      *zap.Logger
	props    SeedProperties
	channels SeedChannels

	seedPath string
	debounce time.Duration

	// onApply runs after every successful apply (cache invalidation).
	onApply func()
}

// StartSeedSync constructs the seed sync service, applies the seed once, and starts a debounced watcher.
// The service lives/lifetimes with the provided ctx; cancel ctx to stop the watcher.
func StartSeedSync(ctx context.Context, log *zap.Logger, props SeedProperties, channels SeedChannels, seedPath string, debounce time.Duration, onApply func()) error {
	if debounce <= 0 {
		debounce = 750 * time.Millisecond
	}
	if seedPath == "" {
		seedPath = defaultFilePath("configs/seed.json", "/etc/chansync/seed.json")
	}
	if seedPath == "" {
		return fmt.Errorf("%w: no seed file found", ErrInvalidSeed)
	}
	s := newSeedSync(log, props, channels, seedPath, debounce, onApply)

	// Initial apply on boot. If it fails, we surface the error: caller can decide to abort startup.
	if err := s.applyOnce(ctx); err != nil {
		return fmt.Errorf("initial apply: %w", err)
	}

	go s.watch(ctx)
	return nil
}

// ApplySeedFile applies the seed once without watching it.
func ApplySeedFile(ctx context.Context, log *zap.Logger, props SeedProperties, channels SeedChannels, seedPath string) error {
	return newSeedSync(log, props, channels, seedPath, 0, nil).applyOnce(ctx)
}

func newSeedSync(log *zap.Logger, props SeedProperties, channels SeedChannels, seedPath string, debounce time.Duration, onApply func()) *SeedSyncService {
	if log == nil {
		log = zap.NewNop()
	}
	if onApply == nil {
		onApply = func() {}
	}
	return &SeedSyncService{
		log:      log.Named("seed_sync"),
		props:    props,
		channels: channels,
		seedPath: seedPath,
		debounce: debounce,
		onApply:  onApply,
	}
}

// --- internal model + helpers ------------------------------------------------

// seedFile is the on-disk contract for property data and channel configuration.
type seedFile struct {
	Properties []seedProperty     `json:"properties"`
	Channels   []*channel.Channel `json:"channels"`
}

type seedProperty struct {
	property.Property
	Rooms        []property.Room         `json:"rooms"`
	Availability []property.Availability `json:"availability"`
}

func loadSeed(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open '%s': %w", path, err)
	}
	defer f.Close()
	var seed seedFile
	if err := jsonx.ParseJSONObject(f, &seed); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	for i, p := range seed.Properties {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: properties[%d]: id is required", ErrInvalidSeed, i)
		}
	}
	for i, ch := range seed.Channels {
		if ch == nil || ch.ID == "" {
			return nil, fmt.Errorf("%w: channels[%d]: id is required", ErrInvalidSeed, i)
		}
		if ch.Status == "" {
			ch.Status = channel.StatusInactive
		}
		if err := ch.Validate(); err != nil {
			return nil, fmt.Errorf("%w: channels[%d] (%s): %v", ErrInvalidSeed, i, ch.ID, err)
		}
	}
	return &seed, nil
}

// applyOnce upserts everything in the seed file. Nothing is deleted; a
// channel that already exists keeps its sync status fields.
func (s *SeedSyncService) applyOnce(ctx context.Context) error {
	abs, err := filepath.Abs(s.seedPath)
	if err != nil {
		abs = s.seedPath
	}
	seed, err := loadSeed(abs)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	// --- Properties, rooms, availability ---
	records := 0
	for _, p := range seed.Properties {
		if err := s.props.UpsertProperty(ctx, p.Property); err != nil {
			return fmt.Errorf("property upsert (%s): %w", p.ID, err)
		}
		rooms := make([]property.Room, len(p.Rooms))
		for i, r := range p.Rooms {
			r.PropertyID = p.ID
			rooms[i] = r
		}
		if err := s.props.SetRooms(ctx, p.ID, rooms); err != nil {
			return fmt.Errorf("set rooms (%s): %w", p.ID, err)
		}
		if err := s.props.UpsertAvailability(ctx, p.ID, p.Availability); err != nil {
			return fmt.Errorf("availability upsert (%s): %w", p.ID, err)
		}
		records += len(p.Availability)
	}

	// --- Channels ---
	now := time.Now().UTC()
	for _, ch := range seed.Channels {
		cur, err := s.channels.Get(ctx, ch.ID)
		switch {
		case err == nil:
			keepSyncState(ch, cur)
			ch.UpdatedAt = now
		case errors.Is(err, repo.ErrChannelNotFound):
			ch.SyncStatus = channel.SyncPending
			ch.LastSync, ch.LastResult, ch.ErrorMessage = nil, nil, ""
			ch.CreatedAt, ch.UpdatedAt = now, now
		default:
			return fmt.Errorf("channel get (%s): %w", ch.ID, err)
		}
		if err := s.channels.Upsert(ctx, ch); err != nil {
			return fmt.Errorf("channel upsert (%s): %w", ch.ID, err)
		}
	}

	s.onApply()
	s.log.Info("seed applied",
		zap.Int("properties", len(seed.Properties)),
		zap.Int("availability_records", records),
		zap.Int("channels", len(seed.Channels)),
		zap.String("path", abs),
	)
	return nil
}

func keepSyncState(dst, cur *channel.Channel) {
	dst.SyncStatus = cur.SyncStatus
	dst.LastSync = cur.LastSync
	dst.ErrorMessage = cur.ErrorMessage
	dst.LastResult = cur.LastResult
	dst.CreatedAt = cur.CreatedAt
}

// watch sets up fsnotify and runs a debounced apply on relevant file events.
// DEV: Debounce guards against partial writes / save bursts from editors.
func (s *SeedSyncService) watch(ctx context.Context) {
	abs, err := filepath.Abs(s.seedPath)
	if err != nil {
		abs = s.seedPath
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Error("watcher init", zap.Error(err))
		return
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		s.log.Error("watch add dir", zap.String("dir", dir), zap.Error(err))
		return
	}

	var t *time.Timer
	trigger := func() {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.applyOnce(cctx); err != nil {
			s.log.Warn("apply failed", zap.Error(err))
		}
	}

	reset := func() {
		if t != nil {
			t.Stop()
		}
		t = time.AfterFunc(s.debounce, trigger)
	}

	for {
		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != abs {
				continue
			}
			// Remove means the file is gone; ignore until it reappears.
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				reset()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn("watch error", zap.Error(err))
		}
	}
}

// --- helpers -----------------------------------------------------------

// defaultFilePath returns the first of fileNames that exists, or "".
func defaultFilePath(fileNames ...string) string {
	for _, fileName := range fileNames {
		if fileExists(fileName) {
			return fileName
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edirooss/chansync/internal/domain/channel"
	"go.uber.org/zap"
)

type SummaryOptions struct {
	// TTL controls how long we serve the in-memory snapshot; default 2s.
	TTL time.Duration
	// RefreshTimeout bounds Redis work for a single refresh; default 1s.
	RefreshTimeout time.Duration
	// Allow serving stale on refresh error (graceful degrade).
	AllowStaleOnError bool
}

func (o *SummaryOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 2 * time.Second
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = time.Second
	}
}

// SummaryResult lets the handler set headers/telemetry.
type SummaryResult struct {
	Data        []channel.StatusView
	Counts      map[channel.SyncStatus]int
	CacheHit    bool
	GeneratedAt time.Time // snapshot timestamp
}

// ChannelLister is the slice of ChannelStore the summary needs.
type ChannelLister interface {
	ListAll(ctx context.Context) ([]*channel.Channel, error)
}

// SummaryService serves the status of every channel across all properties
// from a short-lived in-memory snapshot.
type SummaryService struct {
	log      *zap.Logger
	channels ChannelLister

	mu      sync.RWMutex
	cache   []channel.StatusView
	expires time.Time
	genAt   time.Time

	opts SummaryOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewSummaryService wires the channel store and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewSummaryService(log *zap.Logger, channels ChannelLister, opts SummaryOptions) *SummaryService {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()

	return &SummaryService{
		log:      log.Named("summary_service"),
		channels: channels,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *SummaryService) cached() (SummaryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil || !s.now().Before(s.expires) {
		return SummaryResult{}, false
	}
	return newSummaryResult(s.cache, true, s.genAt), true
}

// Get returns the cached snapshot or refreshes it when expired.
// Multiple concurrent refreshes are coalesced.
func (s *SummaryService) Get(ctx context.Context) (SummaryResult, error) {
	// Fast path: fresh cache
	if res, ok := s.cached(); ok {
		return res, nil
	}

	// Slow path: singleflight refresh
	v, err, _ := s.sg.Do("summary-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		if res, ok := s.cached(); ok {
			return res, nil
		}

		ctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()

		start := s.now()
		data, err := s.refresh(ctx)
		if err != nil {
			if s.opts.AllowStaleOnError {
				s.mu.RLock()
				stale, genAt := s.cache, s.genAt
				s.mu.RUnlock()
				if stale != nil {
					s.log.Warn("summary refresh failed; serving stale", zap.Error(err))
					return newSummaryResult(stale, true, genAt), nil
				}
			}
			return nil, err
		}

		// Publish new snapshot
		s.mu.Lock()
		s.cache = data
		s.expires = s.now().Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		return newSummaryResult(data, false, start), nil
	})
	if err != nil {
		return SummaryResult{}, err
	}
	return v.(SummaryResult), nil
}

// Invalidate drops the snapshot; the next Get refreshes.
func (s *SummaryService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.genAt = time.Time{}
	s.mu.Unlock()
}

func (s *SummaryService) refresh(ctx context.Context) ([]channel.StatusView, error) {
	chs, err := s.channels.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]channel.StatusView, 0, len(chs))
	for _, ch := range chs {
		out = append(out, ch.AsStatusView())
	}
	return out, nil
}

func newSummaryResult(data []channel.StatusView, hit bool, genAt time.Time) SummaryResult {
	out := cloneViews(data)
	counts := make(map[channel.SyncStatus]int, 4)
	for _, v := range out {
		counts[v.SyncStatus]++
	}
	return SummaryResult{Data: out, Counts: counts, CacheHit: hit, GeneratedAt: genAt}
}

// cloneViews copies the slice and the LastSync pointers; LastResult is
// immutable once built and is shared.
func cloneViews(in []channel.StatusView) []channel.StatusView {
	out := make([]channel.StatusView, len(in))
	copy(out, in)
	for i := range out {
		if out[i].LastSync != nil {
			t := *out[i].LastSync
			out[i].LastSync = &t
		}
	}
	return out
}

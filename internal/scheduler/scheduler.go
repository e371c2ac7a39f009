// Package scheduler runs periodic channel syncs from cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/edirooss/chansync/internal/config"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer is the orchestrator entry point the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context, t syncresult.Type, propertyID string, channelIDs []string, rng *property.DateRange) ([]*syncresult.Result, error)
}

// Job is one scheduled sync.
type Job struct {
	Spec       string
	PropertyID string
	SyncType   syncresult.Type
	ChannelIDs []string
}

func (j Job) String() string {
	s := fmt.Sprintf("%s %s@%s", j.Spec, j.SyncType, j.PropertyID)
	if len(j.ChannelIDs) > 0 {
		s += "[" + strings.Join(j.ChannelIDs, ",") + "]"
	}
	return s
}

// JobsFromConfig converts schedule entries; the first invalid sync type is
// returned as an error.
func JobsFromConfig(entries []config.ScheduleConfig) ([]Job, error) {
	jobs := make([]Job, 0, len(entries))
	for i, e := range entries {
		t, err := syncresult.ParseType(e.SyncType)
		if err != nil {
			return nil, fmt.Errorf("schedules[%d]: %w", i, err)
		}
		jobs = append(jobs, Job{
			Spec:       e.Cron,
			PropertyID: e.PropertyID,
			SyncType:   t,
			ChannelIDs: append([]string(nil), e.ChannelIDs...),
		})
	}
	return jobs, nil
}

type Options struct {
	// JobTimeout bounds a single run; default 30m.
	JobTimeout time.Duration
	// Location for cron expressions; default UTC.
	Location *time.Location
}

// Scheduler wraps a cron runner. A job whose previous run is still in flight
// is skipped, and a panicking job is logged and recovered.
type Scheduler struct {
	log    *zap.Logger
	syncer Syncer
	cron   *cron.Cron
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[cron.EntryID]Job
}

func New(log *zap.Logger, syncer Syncer, opts Options) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:    log,
		syncer: syncer,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		jobs:   map[cron.EntryID]Job{},
	}
}

// Add registers a job; an unparsable cron expression is an error.
func (s *Scheduler) Add(job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return 0, fmt.Errorf("add job %q: %w", job.Spec, err)
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	s.log.Info("job scheduled", zap.Int("entry_id", int(id)), zap.Stringer("job", job))
	return id, nil
}

// Entry is a registered job and its next run time (zero before Start).
type Entry struct {
	ID   cron.EntryID
	Job  Job
	Next time.Time
}

// Entries returns the registered jobs in registration order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for _, e := range s.cron.Entries() {
		if j, ok := s.jobs[e.ID]; ok {
			out = append(out, Entry{ID: e.ID, Job: j, Next: e.Next})
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.JobTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.syncer.Sync(ctx, job.SyncType, job.PropertyID, job.ChannelIDs, nil)
	if err != nil {
		s.log.Error("scheduled sync failed", zap.Stringer("job", job), zap.Error(err))
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info("scheduled sync done",
		zap.Stringer("job", job),
		zap.Int("channels", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, zap.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}

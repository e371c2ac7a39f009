// Package app assembles the sync engine from configuration; the binaries
// under cmd/ only add their own outer surface (HTTP, CLI).
package app

import (
	"sort"

	"github.com/edirooss/chansync/internal/config"
	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/connector/vendors"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/metrics"
	"github.com/edirooss/chansync/internal/ratelimit"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/scheduler"
	"github.com/edirooss/chansync/internal/service"
	"github.com/edirooss/chansync/internal/transport"
	"go.uber.org/zap"
)

// Stores groups the persistence the engine reads and writes.
type Stores struct {
	Properties   service.PropertyStore
	Channels     service.ChannelStore
	History      service.ResultLog
	SeedProps    service.SeedProperties
	SeedChannels service.SeedChannels
}

// RedisStores returns the Redis-backed stores.
func RedisStores(r *repo.Repository) Stores {
	return Stores{
		Properties:   r.Properties,
		Channels:     r.Channels,
		History:      r.History,
		SeedProps:    r.Properties,
		SeedChannels: r.Channels,
	}
}

// MemoryStores returns process-local stores, all backed by m.
func MemoryStores(m *repo.Memory) Stores {
	return Stores{Properties: m, Channels: m, History: m, SeedProps: m, SeedChannels: m}
}

type App struct {
	Log    *zap.Logger
	Config *config.Config
	Stores Stores

	Metrics      *metrics.Metrics // nil when metrics are off
	Registry     *connector.Registry
	Orchestrator *service.Orchestrator
	Summary      *service.SummaryService
}

// New wires connectors, orchestrator and summary over stores. m may be nil.
func New(log *zap.Logger, cfg *config.Config, stores Stores, m *metrics.Metrics) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var obs transport.Observer
	var syncObs service.SyncObserver
	if m != nil {
		obs, syncObs = m, m
	}

	deps, err := ConnectorDeps(log, cfg, obs)
	if err != nil {
		return nil, err
	}
	reg := vendors.DefaultRegistry(deps, DisabledTypes(cfg)...)

	orch := service.NewOrchestrator(log, stores.Properties, stores.Channels, reg, service.OrchestratorOptions{
		Parallel:    cfg.Sync.Parallel,
		MaxParallel: cfg.Sync.MaxParallel,
		History:     stores.History,
		Metrics:     syncObs,
	})
	summary := service.NewSummaryService(log, stores.Channels, service.SummaryOptions{AllowStaleOnError: true})

	return &App{
		Log:          log,
		Config:       cfg,
		Stores:       stores,
		Metrics:      m,
		Registry:     reg,
		Orchestrator: orch,
		Summary:      summary,
	}, nil
}

// ConnectorDeps translates the transport, sync and per-channel sections of
// cfg into connector dependencies.
func ConnectorDeps(log *zap.Logger, cfg *config.Config, obs transport.Observer) (connector.Deps, error) {
	policy, err := syncresult.ParsePolicy(cfg.Sync.BatchPolicy)
	if err != nil {
		return connector.Deps{}, err
	}

	topts := transport.Options{
		Timeout:    cfg.Transport.Timeout,
		MaxRetries: cfg.Transport.MaxRetries,
		BaseDelay:  cfg.Transport.BaseDelay,
		MaxDelay:   cfg.Transport.MaxDelay,
		Observer:   obs,
	}
	if cfg.Transport.CircuitBreaker {
		topts.Breaker = &transport.BreakerOptions{}
	}

	settings := make(map[string]connector.Settings, len(cfg.Channels))
	for typ, cc := range cfg.Channels {
		settings[typ] = connector.Settings{BaseURL: cc.BaseURL, RequestsPerMinute: cc.RequestsPerMinute}
	}

	// Parallel syncs share a connector between goroutines; the pacer is not
	// safe for that.
	kind := ratelimit.KindPacer
	if cfg.Sync.Parallel {
		kind = ratelimit.KindTokenBucket
	}
	return connector.Deps{
		Log:       log,
		Transport: topts,
		Policy:    policy,
		Settings:  settings,
		Limiter: func(rpm int) ratelimit.Limiter {
			lim, _ := ratelimit.New(kind, rpm)
			return lim
		},
	}, nil
}

// DisabledTypes lists channel types switched off in cfg, sorted.
func DisabledTypes(cfg *config.Config) []string {
	var out []string
	for typ, cc := range cfg.Channels {
		if cc.Disabled {
			out = append(out, typ)
		}
	}
	sort.Strings(out)
	return out
}

// Scheduler builds a scheduler loaded with cfg's schedules. It is not started.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	jobs, err := scheduler.JobsFromConfig(a.Config.Schedules)
	if err != nil {
		return nil, err
	}
	s := scheduler.New(a.Log, a.Orchestrator, scheduler.Options{})
	for _, j := range jobs {
		if _, err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

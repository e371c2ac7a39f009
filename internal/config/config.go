package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/edirooss/chansync/pkg/hostutil"
	"gopkg.in/yaml.v3"
)

// Build metadata, injected with -ldflags "-X github.com/edirooss/chansync/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// DefaultPath is where the binaries look for their config when -config is not given.
const DefaultPath = "chansync.yaml"

type Config struct {
	RedisAddr     string `yaml:"redis_address"`
	ListenAddr    string `yaml:"listen_address"`
	Port          string `yaml:"port"`
	SeedFile      string `yaml:"seed_file"`
	MaxConcurrent int    `yaml:"max_concurrent_requests"`

	Sync      SyncConfig               `yaml:"sync"`
	Transport TransportConfig          `yaml:"transport"`
	Channels  map[string]ChannelConfig `yaml:"channels"`
	Schedules []ScheduleConfig         `yaml:"schedules"`
}

type SyncConfig struct {
	Parallel    bool   `yaml:"parallel"`
	MaxParallel int    `yaml:"max_parallel"`
	BatchPolicy string `yaml:"batch_policy"` // at_least_one | all_or_nothing
	HistorySize int64  `yaml:"history_size"`
}

type TransportConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	CircuitBreaker bool          `yaml:"circuit_breaker"`
}

// ChannelConfig overrides connector defaults for one channel type.
type ChannelConfig struct {
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Disabled          bool   `yaml:"disabled"`
}

type ScheduleConfig struct {
	Cron       string   `yaml:"cron"`
	PropertyID string   `yaml:"property_id"`
	SyncType   string   `yaml:"sync_type"`
	ChannelIDs []string `yaml:"channel_ids"`
}

// Load reads and validates the YAML config at path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, for runs without a
// config file.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// ApplyEnv overrides file values with CHANSYNC_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHANSYNC_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("CHANSYNC_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("CHANSYNC_SEED_FILE"); v != "" {
		c.SeedFile = v
	}
}

func (c *Config) setDefaults() {
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 64
	}
	if c.Sync.BatchPolicy == "" {
		c.Sync.BatchPolicy = "at_least_one"
	}
	if c.Sync.MaxParallel <= 0 {
		c.Sync.MaxParallel = 4
	}
	if c.Sync.HistorySize <= 0 {
		c.Sync.HistorySize = 50
	}
	if c.Transport.Timeout <= 0 {
		c.Transport.Timeout = 30 * time.Second
	}
	if c.Transport.MaxRetries == 0 {
		c.Transport.MaxRetries = 3
	}
	if c.Transport.BaseDelay <= 0 {
		c.Transport.BaseDelay = time.Second
	}
	if c.Transport.MaxDelay <= 0 {
		c.Transport.MaxDelay = 10 * time.Second
	}
}

// Validate rejects configs the binaries cannot run with.
func (c *Config) Validate() error {
	switch c.Sync.BatchPolicy {
	case "at_least_one", "all_or_nothing":
	default:
		return fmt.Errorf("invalid sync.batch_policy %q", c.Sync.BatchPolicy)
	}
	if c.Transport.MaxDelay < c.Transport.BaseDelay {
		return errors.New("transport.max_delay must be >= transport.base_delay")
	}
	for typ, cc := range c.Channels {
		if cc.BaseURL != "" {
			if err := hostutil.ValidateBaseURL(cc.BaseURL); err != nil {
				return fmt.Errorf("channels.%s.base_url: %w", typ, err)
			}
		}
		if cc.RequestsPerMinute < 0 {
			return fmt.Errorf("channels.%s.requests_per_minute must be >= 0", typ)
		}
	}
	for i, s := range c.Schedules {
		if s.Cron == "" || s.PropertyID == "" {
			return fmt.Errorf("schedules[%d]: cron and property_id are required", i)
		}
		switch s.SyncType {
		case "inventory", "rates", "availability":
		default:
			return fmt.Errorf("schedules[%d]: invalid sync_type %q", i, s.SyncType)
		}
	}
	return nil
}

// Command sync-once runs one sync for one property and prints the results.
//
// With -seed the run is self-contained: the seed file is loaded into an
// in-memory store and Redis is never contacted. Without it the stores in
// the configured Redis are used, exactly as the server would.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/edirooss/chansync/internal/app"
	"github.com/edirooss/chansync/internal/config"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/http/dto"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/service"
	"github.com/edirooss/chansync/pkg/fmtt"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// CLI flags
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config (optional with -seed)")
	propertyID := flag.String("property", "", "property id")
	syncType := flag.String("type", "", "inventory | rates | availability")
	channels := flag.String("channels", "", "comma-separated channel ids (default: every active channel)")
	start := flag.String("start", "", "availability range start, YYYY-MM-DD")
	end := flag.String("end", "", "availability range end, YYYY-MM-DD")
	seed := flag.String("seed", "", "seed file; runs against an in-memory store")
	dump := flag.Bool("dump", false, "dump results with their Go types instead of JSON")
	debug := flag.Bool("debug", false, "verbose logs and error chains")
	flag.Parse()

	if *propertyID == "" || *syncType == "" {
		fmt.Println("Usage: ./sync-once -property=<id> -type=<inventory|rates|availability> [-channels=a,b] [-start=YYYY-MM-DD -end=YYYY-MM-DD] [-seed=seed.json]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	log := buildLogger(*debug).Named("main")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := run(ctx, log, options{
		configPath: *configPath,
		propertyID: *propertyID,
		syncType:   *syncType,
		channels:   *channels,
		start:      *start,
		end:        *end,
		seed:       *seed,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "sync failed:")
		if *debug {
			fmtt.FprintErrChainDebug(os.Stderr, err)
		} else {
			fmtt.FprintErrChain(os.Stderr, err)
		}
		os.Exit(1)
	}

	resp := dto.NewSyncResponse(results)
	if *dump {
		fmtt.Dump(os.Stdout, resp)
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
	}
	if resp.Failed > 0 {
		os.Exit(2)
	}
}

type options struct {
	configPath string
	propertyID string
	syncType   string
	channels   string
	start, end string
	seed       string
}

func run(ctx context.Context, log *zap.Logger, o options) ([]*syncresult.Result, error) {
	typ, err := syncresult.ParseType(o.syncType)
	if err != nil {
		return nil, err
	}
	var rng *property.DateRange
	if o.start != "" || o.end != "" {
		if typ != syncresult.Availability {
			return nil, errors.New("-start/-end apply to availability syncs only")
		}
		r, err := dto.ParseDateRange(o.start, o.end)
		if err != nil {
			return nil, fmt.Errorf("date range: %w", err)
		}
		rng = &r
	}

	cfg, err := loadConfig(o.configPath, o.seed != "")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var stores app.Stores
	if o.seed != "" {
		mem := repo.NewMemory()
		mem.SetHistorySize(int(cfg.Sync.HistorySize))
		stores = app.MemoryStores(mem)
		if err := service.ApplySeedFile(ctx, log, stores.SeedProps, stores.SeedChannels, o.seed); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	} else {
		rdb := buildRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		store := repo.NewRepository(log, rdb, repo.DefaultPrefix)
		store.History.SetSize(cfg.Sync.HistorySize)
		if err := store.Client().Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		stores = app.RedisStores(store)
	}

	a, err := app.New(log, cfg, stores, nil)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	results, err := a.Orchestrator.Sync(ctx, typ, o.propertyID, splitIDs(o.channels), rng)
	if err != nil {
		return nil, err
	}
	log.Info("sync finished",
		zap.String("property_id", o.propertyID),
		zap.String("type", string(typ)),
		zap.Int("channels", len(results)),
		zap.Duration("took", time.Since(started)),
	)
	return results, nil
}

// loadConfig falls back to defaults when the file is missing and optional.
func loadConfig(path string, optional bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func buildLogger(debug bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.OutputPaths = []string{"stderr"}
	if debug {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}
	return zap.Must(logConfig.Build())
}

func buildRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
}

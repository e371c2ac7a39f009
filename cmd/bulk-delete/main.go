// Command bulk-delete removes every channel of a property that has never
// synced, optionally only those in one administrative status. Channels with
// sync history are skipped, as the API would refuse them too.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/edirooss/chansync/internal/config"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ChannelDeleter is the slice of the orchestrator this tool drives.
type ChannelDeleter interface {
	ListChannels(ctx context.Context, propertyID string) ([]*channel.Channel, error)
	DeleteChannel(ctx context.Context, propertyID, channelID string) (bool, error)
}

func main() {
	// CLI flags
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	propertyID := flag.String("property", "", "property whose channels are deleted")
	status := flag.String("status", "", "only delete channels in this status (active|inactive|error|testing)")
	dryRun := flag.Bool("dry-run", false, "list what would be deleted")
	flag.Parse()

	if *propertyID == "" || (*status != "" && !channel.Status(*status).Valid()) {
		fmt.Println("Usage: ./bulk-delete -property=<id> [-status=<status>] [-dry-run]")
		os.Exit(1)
	}

	log := buildLogger()
	log = log.Named("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	cfg.ApplyEnv()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DialTimeout: 5 * time.Second})
	defer rdb.Close()
	store := repo.NewRepository(log, rdb, repo.DefaultPrefix)
	orch := service.NewOrchestrator(log, store.Properties, store.Channels, nil, service.OrchestratorOptions{History: store.History})

	deleted, skipped, err := bulkDelete(context.Background(), log, orch, *propertyID, channel.Status(*status), *dryRun)
	if err != nil {
		log.Fatal("bulk delete failed", zap.Error(err))
	}
	log.Info("done", zap.Int("deleted", deleted), zap.Int("skipped", skipped), zap.Bool("dry_run", *dryRun))
}

func bulkDelete(ctx context.Context, log *zap.Logger, d ChannelDeleter, propertyID string, status channel.Status, dryRun bool) (deleted, skipped int, err error) {
	chs, err := d.ListChannels(ctx, propertyID)
	if err != nil {
		return 0, 0, fmt.Errorf("list channels: %w", err)
	}

	total := len(chs)
	for idx, ch := range chs {
		if status != "" && ch.Status != status {
			continue
		}
		iterStart := time.Now()

		if dryRun {
			log.Info("would delete", zap.String("channel_id", ch.ID), zap.String("name", ch.Name))
			deleted++
			continue
		}

		found, err := d.DeleteChannel(ctx, propertyID, ch.ID)
		switch {
		case errors.Is(err, repo.ErrHasHistory):
			log.Warn("channel skipped: has sync history", zap.String("channel_id", ch.ID))
			skipped++
			continue
		case err != nil:
			return deleted, skipped, fmt.Errorf("delete %s: %w", ch.ID, err)
		case !found:
			skipped++
			continue
		}
		deleted++

		log.Info("channel deleted",
			zap.String("channel_id", ch.ID),
			zap.Int("index", idx+1),
			zap.Int("total", total),
			zap.Duration("took", time.Since(iterStart)),
		)
	}
	return deleted, skipped, nil
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}

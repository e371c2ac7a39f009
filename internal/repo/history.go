package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultHistorySize caps each channel's result list.
const DefaultHistorySize = 50

// HistoryRepository keeps the most recent sync results per channel in a
// capped Redis list, newest first.
type HistoryRepository struct {
	client *RedisClient
	log    *zap.Logger
	keys   keys
	size   int64
}

func newHistoryRepository(log *zap.Logger, client *RedisClient, k keys) *HistoryRepository {
	return &HistoryRepository{
		log:    log.Named("history"),
		client: client,
		keys:   k,
		size:   DefaultHistorySize,
	}
}

// SetSize changes the cap applied on the next Append.
func (r *HistoryRepository) SetSize(n int64) {
	if n > 0 {
		r.size = n
	}
}

// Append pushes res onto the channel's list and trims it to the cap.
func (r *HistoryRepository) Append(ctx context.Context, channelID string, res *syncresult.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	key := r.keys.history(channelID)

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, r.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// List returns up to limit results, newest first. limit <= 0 returns all.
func (r *HistoryRepository) List(ctx context.Context, channelID string, limit int64) ([]*syncresult.Result, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	vals, err := r.client.LRange(ctx, r.keys.history(channelID), 0, stop).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lrange: %w", err)
	}

	out := make([]*syncresult.Result, 0, len(vals))
	for i, v := range vals {
		var res syncresult.Result
		if err := json.Unmarshal([]byte(v), &res); err != nil {
			r.log.Warn("skipping undecodable history entry",
				zap.String("channel_id", channelID),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
	// ErrHasHistory blocks hard deletion of a channel with recorded syncs;
	// such channels are disabled with status inactive instead.
	ErrHasHistory = errors.New("channel has sync history")
	// ErrConflict is returned when an optimistic update kept losing races.
	ErrConflict = errors.New("concurrent channel update")
)

const maxTxRetries = 5

// ChannelRepository provides Redis-backed persistence for Channel records.
type ChannelRepository struct {
	client *RedisClient
	log    *zap.Logger
	keys   keys
	now    func() time.Time
}

func newChannelRepository(log *zap.Logger, client *RedisClient, k keys) *ChannelRepository {
	return &ChannelRepository{
		log:    log.Named("channels"),
		client: client,
		keys:   k,
		now:    time.Now,
	}
}

// Create persists a new channel and indexes it under its property. An empty
// ID is replaced by a fresh uuid; sync status starts at pending.
func (r *ChannelRepository) Create(ctx context.Context, ch *channel.Channel) (*channel.Channel, error) {
	out := ch.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.SyncStatus == "" {
		out.SyncStatus = channel.SyncPending
	}
	if out.Status == "" {
		out.Status = channel.StatusInactive
	}
	now := r.now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	payload, err := encodeChannel(out)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.keys.channel(out.ID), payload, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, ErrChannelExists
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.keys.channelIDs(), out.ID)
	pipe.SAdd(ctx, r.keys.propertyChannels(out.PropertyID), out.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return out, nil
}

// Upsert writes ch as-is and (re)indexes it. Used by the seed loader.
func (r *ChannelRepository) Upsert(ctx context.Context, ch *channel.Channel) error {
	payload, err := encodeChannel(ch)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keys.channel(ch.ID), payload, 0)
	pipe.SAdd(ctx, r.keys.channelIDs(), ch.ID)
	pipe.SAdd(ctx, r.keys.propertyChannels(ch.PropertyID), ch.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Get fetches a channel by id.
// Returns ErrChannelNotFound if the key does not exist.
func (r *ChannelRepository) Get(ctx context.Context, id string) (*channel.Channel, error) {
	value, err := r.client.Get(ctx, r.keys.channel(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	ch, err := decodeChannel(value)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return ch, nil
}

// ListByProperty returns a property's channels ordered by creation time.
func (r *ChannelRepository) ListByProperty(ctx context.Context, propertyID string) ([]*channel.Channel, error) {
	return r.listSet(ctx, r.keys.propertyChannels(propertyID))
}

// ListAll returns every indexed channel.
//
// Not a point-in-time snapshot: SMEMBERS and MGET are separate calls, so a
// channel created or deleted in between may be missing or skipped.
func (r *ChannelRepository) ListAll(ctx context.Context) ([]*channel.Channel, error) {
	return r.listSet(ctx, r.keys.channelIDs())
}

func (r *ChannelRepository) listSet(ctx context.Context, setKey string) ([]*channel.Channel, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	if len(ids) == 0 {
		return []*channel.Channel{}, nil
	}

	chKeys := make([]string, len(ids))
	for i, id := range ids {
		chKeys[i] = r.keys.channel(id)
	}
	vals, err := r.client.MGet(ctx, chKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	out, err := r.parseMGetResult(chKeys, vals)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies mutate to the stored channel under WATCH/MULTI and retries
// when another writer touched the key in between. A mutate error aborts
// without writing.
func (r *ChannelRepository) Update(ctx context.Context, id string, mutate func(ch *channel.Channel) error) (*channel.Channel, error) {
	key := r.keys.channel(id)
	var updated *channel.Channel

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrChannelNotFound
			}
			return fmt.Errorf("get: %w", err)
		}
		ch, err := decodeChannel(raw)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if err := mutate(ch); err != nil {
			return err
		}
		ch.ID = id
		ch.UpdatedAt = r.now().UTC()

		payload, err := encodeChannel(ch)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			updated = ch
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		r.log.Debug("channel update raced; retrying", zap.String("id", id), zap.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("update channel %s: %w", id, ErrConflict)
}

// UpdateSyncState writes the sync status fields, leaving everything else as
// stored.
func (r *ChannelRepository) UpdateSyncState(ctx context.Context, id string, st channel.SyncState) error {
	_, err := r.Update(ctx, id, func(ch *channel.Channel) error {
		st.Apply(ch)
		return nil
	})
	return err
}

// Delete removes a channel that has never synced.
// Returns ErrHasHistory when sync history exists and ErrChannelNotFound when
// nothing was stored.
func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	ch, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	n, err := r.client.Exists(ctx, r.keys.history(id)).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if n > 0 || ch.LastSync != nil {
		return ErrHasHistory
	}

	pipe := r.client.TxPipeline()
	delRes := pipe.Del(ctx, r.keys.channel(id))
	pipe.SRem(ctx, r.keys.channelIDs(), id)
	pipe.SRem(ctx, r.keys.propertyChannels(ch.PropertyID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if delRes.Val() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

func encodeChannel(ch *channel.Channel) ([]byte, error) {
	return json.Marshal(ch)
}

func decodeChannel(raw []byte) (*channel.Channel, error) {
	var ch channel.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// parseMGetResult converts MGET results to channels. Missing keys are
// logged and skipped as eventual-consistency artifacts.
func (r *ChannelRepository) parseMGetResult(chKeys []string, vals []interface{}) ([]*channel.Channel, error) {
	out := make([]*channel.Channel, 0, len(vals))

	for i, v := range vals {
		if v == nil {
			r.log.Warn("channel missing during MGET", zap.String("key", chKeys[i]), zap.Int("index", i))
			continue
		}

		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("key %s at index %d: unexpected type (got %T, want string)", chKeys[i], i, v)
		}
		ch, err := decodeChannel([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("key %s at index %d: decode channel: %w", chKeys[i], i, err)
		}
		out = append(out, ch)
	}
	return out, nil
}

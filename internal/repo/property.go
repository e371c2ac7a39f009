package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrPropertyNotFound = errors.New("property not found")

// PropertyRepository stores the read side of property data: the property
// record, its ordered room list and per-room availability.
//
// Availability lives in one ZSET per room, scored by the UTC day (unix
// seconds at midnight), so a day has at most one member and range reads are
// ZRANGEBYSCORE.
type PropertyRepository struct {
	client *RedisClient
	log    *zap.Logger
	keys   keys
}

func newPropertyRepository(log *zap.Logger, client *RedisClient, k keys) *PropertyRepository {
	return &PropertyRepository{
		log:    log.Named("properties"),
		client: client,
		keys:   k,
	}
}

func (r *PropertyRepository) UpsertProperty(ctx context.Context, p property.Property) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keys.property(p.ID), payload, 0)
	pipe.SAdd(ctx, r.keys.propertyIDs(), p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// GetProperty returns ErrPropertyNotFound if the key does not exist.
func (r *PropertyRepository) GetProperty(ctx context.Context, id string) (*property.Property, error) {
	raw, err := r.client.Get(ctx, r.keys.property(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	var p property.Property
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &p, nil
}

func (r *PropertyRepository) ListPropertyIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.keys.propertyIDs()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	return ids, nil
}

// SetRooms replaces the property's room list; order is preserved.
func (r *PropertyRepository) SetRooms(ctx context.Context, propertyID string, rooms []property.Room) error {
	payload, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := r.client.Set(ctx, r.keys.rooms(propertyID), payload, 0).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// ListRooms returns the rooms in stored order; none is an empty slice.
func (r *PropertyRepository) ListRooms(ctx context.Context, propertyID string) ([]property.Room, error) {
	raw, err := r.client.Get(ctx, r.keys.rooms(propertyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []property.Room{}, nil
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	var rooms []property.Room
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if rooms == nil {
		rooms = []property.Room{}
	}
	return rooms, nil
}

func dayScore(t property.Availability) float64 {
	return float64(property.Day(t.Date).Unix())
}

// UpsertAvailability writes records, replacing any existing record for the
// same room and day.
func (r *PropertyRepository) UpsertAvailability(ctx context.Context, propertyID string, records []property.Availability) error {
	if len(records) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, a := range records {
		a.Date = property.Day(a.Date)
		member, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		key := r.keys.availability(propertyID, a.RoomID)
		score := strconv.FormatFloat(dayScore(a), 'f', 0, 64)
		pipe.ZRemRangeByScore(ctx, key, score, score)
		pipe.ZAdd(ctx, key, redis.Z{Score: dayScore(a), Member: member})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// ListAvailability returns the records within rng for every room of the
// property, grouped in room order and sorted by day within a room.
func (r *PropertyRepository) ListAvailability(ctx context.Context, propertyID string, rng property.DateRange) ([]property.Availability, error) {
	rooms, err := r.ListRooms(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []property.Availability{}, nil
	}

	by := &redis.ZRangeBy{
		Min: strconv.FormatInt(property.Day(rng.Start).Unix(), 10),
		Max: strconv.FormatInt(property.Day(rng.End).Unix(), 10),
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(rooms))
	for i, room := range rooms {
		cmds[i] = pipe.ZRangeByScore(ctx, r.keys.availability(propertyID, room.ID), by)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("exec: %w", err)
	}

	out := []property.Availability{}
	for i, cmd := range cmds {
		for _, member := range cmd.Val() {
			var a property.Availability
			if err := json.Unmarshal([]byte(member), &a); err != nil {
				r.log.Warn("skipping undecodable availability",
					zap.String("property_id", propertyID),
					zap.String("room_id", rooms[i].ID),
					zap.Error(err),
				)
				continue
			}
			out = append(out, a)
		}
	}
	return out, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix       = "staybook"
	pingTimeout     = 2 * time.Second
	DefaultRangeTTL = 30 * time.Second
)

// Client is the subset of *redis.Client the calendar cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and verifies it answers a ping.
func Connect(ctx context.Context, options Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", options.Addr, err)
	}
	return client, nil
}

type cachedEntry struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// Calendar caches ledger ranges in Redis. Range keys embed the room's generation counter, which
// Invalidate increments, so a range read before an invalidation lands under a key nobody reads.
// Each room also keeps an index set of its cached range keys so invalidation can drop them early.
type Calendar struct {
	client   Client
	ttl      time.Duration
	logger   *zap.Logger
	observer func(hit bool)
}

// CalendarOption configures a Calendar.
type CalendarOption func(*Calendar)

// WithLookupObserver receives the outcome of every lookup.
func WithLookupObserver(observer func(hit bool)) CalendarOption {
	return func(calendar *Calendar) {
		calendar.observer = observer
	}
}

// NewCalendar returns a Calendar; a non-positive ttl selects DefaultRangeTTL.
func NewCalendar(client Client, ttl time.Duration, logger *zap.Logger, options ...CalendarOption) *Calendar {
	if ttl <= 0 {
		ttl = DefaultRangeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	calendar := &Calendar{client: client, ttl: ttl, logger: logger}
	for _, option := range options {
		if option != nil {
			option(calendar)
		}
	}
	return calendar
}

// GetRange implements booking.CalendarCache.
func (calendar *Calendar) GetRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, booking.CacheGeneration, bool) {
	generation, err := calendar.generation(ctx, roomID)
	if err != nil {
		calendar.logger.Warn("calendar cache generation read failed", zap.String("room_id", roomID.String()), zap.Error(err))
		calendar.observe(false)
		return nil, -1, false
	}
	key := rangeKey(roomID, generation, start, end)
	payload, err := calendar.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			calendar.logger.Warn("calendar cache read failed", zap.String("key", key), zap.Error(err))
		}
		calendar.observe(false)
		return nil, generation, false
	}
	entries, err := decodeEntries(roomID, payload)
	if err != nil {
		calendar.logger.Warn("calendar cache payload discarded", zap.String("key", key), zap.Error(err))
		calendar.observe(false)
		return nil, generation, false
	}
	calendar.observe(true)
	return entries, generation, true
}

// StoreRange implements booking.CalendarCache.
func (calendar *Calendar) StoreRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date, generation booking.CacheGeneration, entries []booking.LedgerEntry) {
	if generation < 0 {
		return
	}
	key := rangeKey(roomID, generation, start, end)
	payload, err := encodeEntries(entries)
	if err != nil {
		calendar.logger.Warn("calendar cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	index := indexKey(roomID)
	if err := calendar.client.SAdd(ctx, index, key).Err(); err != nil {
		calendar.logger.Warn("calendar cache index failed", zap.String("key", index), zap.Error(err))
		return
	}
	// The index outlives every range key it names.
	if err := calendar.client.Expire(ctx, index, 2*calendar.ttl).Err(); err != nil {
		calendar.logger.Warn("calendar cache index expiry failed", zap.String("key", index), zap.Error(err))
	}
	if err := calendar.client.Set(ctx, key, payload, calendar.ttl).Err(); err != nil {
		calendar.logger.Warn("calendar cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate implements booking.CalendarCache.
func (calendar *Calendar) Invalidate(ctx context.Context, roomIDs ...booking.RoomID) {
	for _, roomID := range roomIDs {
		if err := calendar.client.Incr(ctx, generationKey(roomID)).Err(); err != nil {
			calendar.logger.Warn("calendar cache generation bump failed", zap.String("room_id", roomID.String()), zap.Error(err))
		}
		index := indexKey(roomID)
		keys, err := calendar.client.SMembers(ctx, index).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			calendar.logger.Warn("calendar cache index read failed", zap.String("key", index), zap.Error(err))
			continue
		}
		keys = append(keys, index)
		if err := calendar.client.Del(ctx, keys...).Err(); err != nil {
			calendar.logger.Warn("calendar cache invalidate failed", zap.String("room_id", roomID.String()), zap.Error(err))
		}
	}
}

func (calendar *Calendar) generation(ctx context.Context, roomID booking.RoomID) (booking.CacheGeneration, error) {
	value, err := calendar.client.Get(ctx, generationKey(roomID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return booking.CacheGeneration(value), nil
}

func (calendar *Calendar) observe(hit bool) {
	if calendar.observer != nil {
		calendar.observer(hit)
	}
}

func rangeKey(roomID booking.RoomID, generation booking.CacheGeneration, start booking.Date, end booking.Date) string {
	return fmt.Sprintf("%s:calendar:%s:%d:%s:%s", keyPrefix, roomID, generation, start, end)
}

func generationKey(roomID booking.RoomID) string {
	return fmt.Sprintf("%s:calendar-gen:%s", keyPrefix, roomID)
}

func indexKey(roomID booking.RoomID) string {
	return fmt.Sprintf("%s:calendar-keys:%s", keyPrefix, roomID)
}

func encodeEntries(entries []booking.LedgerEntry) ([]byte, error) {
	cached := make([]cachedEntry, 0, len(entries))
	for _, entry := range entries {
		cached = append(cached, cachedEntry{
			ID:        entry.ID,
			Date:      entry.Date.String(),
			Price:     entry.Price.String(),
			Available: entry.Available,
		})
	}
	return json.Marshal(cached)
}

func decodeEntries(roomID booking.RoomID, payload []byte) ([]booking.LedgerEntry, error) {
	var cached []cachedEntry
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, err
	}
	entries := make([]booking.LedgerEntry, 0, len(cached))
	for _, item := range cached {
		date, err := booking.ParseDate(item.Date)
		if err != nil {
			return nil, err
		}
		price, err := booking.ParsePrice(item.Price)
		if err != nil {
			return nil, err
		}
		entries = append(entries, booking.LedgerEntry{
			ID:        item.ID,
			RoomID:    roomID,
			Date:      date,
			Price:     price,
			Available: item.Available,
		})
	}
	return entries, nil
}

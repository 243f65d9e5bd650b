package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybook/config"
	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix  = "cache:search:"
	idempotencyValue = "pending"
)

// releaseSeatLockScript deletes the lock only while it still carries the caller's token.
var releaseSeatLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client    *redis.Client
	searchTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, searchTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), searchTTL)
}

func NewRedisCacheWithClient(client *redis.Client, searchTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, searchTTL: searchTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetSearch returns ok=false on a miss.
func (c *RedisCache) GetSearch(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, bool, error) {
	data, err := c.client.Get(ctx, searchKey(q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, false, err
	}
	return flights, true, nil
}

func (c *RedisCache) SetSearch(ctx context.Context, q domain.FlightQuery, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, searchKey(q), payload, c.searchTTL).Err()
}

// InvalidateSearch drops every cached search result; prices inside them may be stale.
func (c *RedisCache) InvalidateSearch(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// AcquireSeatLock returns the token that owns the lock when it was free.
func (c *RedisCache) AcquireSeatLock(ctx context.Context, seatID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, seatLockKey(seatID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseSeatLock is a no-op when the lock expired and was taken by someone else.
func (c *RedisCache) ReleaseSeatLock(ctx context.Context, seatID int64, token string) error {
	return releaseSeatLockScript.Run(ctx, c.client, []string{seatLockKey(seatID)}, token).Err()
}

// ReserveIdempotencyKey claims key for a new request. When the key is already taken it returns the
// stored result of the finished request, or nil while that request is still running.
func (c *RedisCache) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, *domain.BookingResult, error) {
	ok, err := c.client.SetNX(ctx, idempotencyKey(key), idempotencyValue, ttl).Result()
	if err != nil || ok {
		return ok, nil, err
	}

	data, err := c.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET; treat as still running
			return false, nil, nil
		}
		return false, nil, err
	}
	if string(data) == idempotencyValue {
		return false, nil, nil
	}

	var result domain.BookingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return false, nil, err
	}
	return false, &result, nil
}

func (c *RedisCache) StoreBookingResult(ctx context.Context, key string, result *domain.BookingResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, idempotencyKey(key), payload, ttl).Err()
}

func (c *RedisCache) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.client.Del(ctx, idempotencyKey(key)).Err()
}

func searchKey(q domain.FlightQuery) string {
	date := "any"
	if q.Date != nil {
		date = q.Date.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s%s:%s:%s", searchKeyPrefix, q.Origin, q.Destination, date)
}

func seatLockKey(seatID int64) string {
	return fmt.Sprintf("lock:seat:%d", seatID)
}

func idempotencyKey(key string) string {
	return "idem:booking:" + key
}

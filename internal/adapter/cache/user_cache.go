package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domain "users-api/internal/domain/user"
)

const (
	// listKey holds the JSON encoded result of the last full listing.
	listKey = "users:list"
	// generationKey is bumped by every invalidation. A listing is only
	// stored under the generation it was read in.
	generationKey = "users:list:gen"
)

// setIfGenerationScript stores the listing only while the generation still
// matches ARGV[1]. Returns 1 when stored and 0 when the snapshot is stale.
var setIfGenerationScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1]) or '0'
	if current ~= ARGV[1] then
		return 0
	end
	local ttl = tonumber(ARGV[3])
	if ttl > 0 then
		redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
	else
		redis.call('SET', KEYS[2], ARGV[2])
	end
	return 1
`)

// UserListCache defines the interface for caching the users listing.
type UserListCache interface {
	// Get retrieves the cached listing.
	// Returns nil, false if nothing is cached.
	Get(ctx context.Context) ([]domain.User, bool, error)

	// Generation returns the current listing generation. Read it before
	// querying the database and pass it to Set.
	Generation(ctx context.Context) (int64, error)

	// Set stores the listing with the configured TTL if no invalidation
	// happened since generation was read. It reports whether it stored.
	Set(ctx context.Context, generation int64, users []domain.User) (bool, error)

	// Invalidate bumps the generation and drops the cached listing.
	Invalidate(ctx context.Context) error
}

// RedisUserListCache implements UserListCache using Redis as the backing store.
// Every Redis call goes through a circuit breaker so a dead Redis costs one
// fast failure instead of a dial timeout per request.
type RedisUserListCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
	cb     *gobreaker.CircuitBreaker
}

// NewRedisUserListCache creates a new Redis-backed listing cache.
func NewRedisUserListCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisUserListCache {
	st := gobreaker.Settings{
		Name:        "redis-user-cache",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A miss is a normal answer, not a Redis failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	}

	return &RedisUserListCache{
		client: client,
		ttl:    ttl,
		log:    log,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// Get retrieves the listing from Redis.
func (c *RedisUserListCache) Get(ctx context.Context) ([]domain.User, bool, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, listKey).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.String("key", listKey))
		return nil, false, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.String("key", listKey), zap.Error(err))
		return nil, false, err
	}

	var users []domain.User
	if err := json.Unmarshal(result.([]byte), &users); err != nil {
		c.log.Error("failed to unmarshal cached users", zap.Error(err))
		return nil, false, err
	}

	c.log.Debug("cache hit", zap.String("key", listKey), zap.Int("count", len(users)))
	return users, true, nil
}

// Generation returns the current generation, 0 before the first invalidation.
func (c *RedisUserListCache) Generation(ctx context.Context) (int64, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, generationKey).Int64()
	})
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.log.Error("failed to read cache generation", zap.String("key", generationKey), zap.Error(err))
		return 0, err
	}
	return result.(int64), nil
}

// Set stores the listing in Redis with TTL unless it was invalidated after
// generation was read.
func (c *RedisUserListCache) Set(ctx context.Context, generation int64, users []domain.User) (bool, error) {
	if users == nil {
		users = []domain.User{}
	}

	data, err := json.Marshal(users)
	if err != nil {
		c.log.Error("failed to marshal users for cache", zap.Error(err))
		return false, err
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return setIfGenerationScript.Run(ctx, c.client, []string{generationKey, listKey},
			strconv.FormatInt(generation, 10),
			data,
			c.ttl.Milliseconds(),
		).Int64()
	})
	if err != nil {
		c.log.Error("failed to set cache", zap.String("key", listKey), zap.Error(err))
		return false, err
	}

	if result.(int64) == 0 {
		c.log.Debug("skipped stale listing", zap.Int64("generation", generation))
		return false, nil
	}

	c.log.Debug("cached users", zap.Int("count", len(users)), zap.Duration("ttl", c.ttl))
	return true, nil
}

// Invalidate bumps the generation and removes the listing in one transaction.
func (c *RedisUserListCache) Invalidate(ctx context.Context) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, generationKey)
			pipe.Del(ctx, listKey)
			return nil
		})
	})
	if err != nil {
		c.log.Error("failed to invalidate cache", zap.String("key", listKey), zap.Error(err))
		return err
	}

	c.log.Debug("invalidated cache", zap.String("key", listKey))
	return nil
}

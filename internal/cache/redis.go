package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const statsTTL = time.Hour

// StatsCache keeps hot couple counters in Redis. The durable counters in the
// couples table stay authoritative; a miss means "ask the database".
type StatsCache struct {
	Client *redis.Client
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewStatsCache initializes a Redis client. Only Addr is mandatory.
func NewStatsCache(opts Options) *StatsCache {
	ro := &redis.Options{
		Addr: opts.Addr,
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB != 0 {
		ro.DB = opts.DB
	}
	return &StatsCache{Client: redis.NewClient(ro)}
}

func (c *StatsCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *StatsCache) Close() error {
	return c.Client.Close()
}

func matchesKey(coupleID uuid.UUID) string {
	return fmt.Sprintf("couple:matches:%s", coupleID)
}

// SetMatchCount seeds the cached counter from the database value.
func (c *StatsCache) SetMatchCount(ctx context.Context, coupleID uuid.UUID, count int64) error {
	return c.Client.Set(ctx, matchesKey(coupleID), count, statsTTL).Err()
}

// IncrMatchCount bumps the cached counter, but only when it is already cached,
// so a cold key is never initialised to 1 while the database says more.
func (c *StatsCache) IncrMatchCount(ctx context.Context, coupleID uuid.UUID) error {
	key := matchesKey(coupleID)
	n, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	pipe := c.Client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, statsTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetMatchCount returns the cached counter and whether it was present.
func (c *StatsCache) GetMatchCount(ctx context.Context, coupleID uuid.UUID) (int64, bool, error) {
	key := matchesKey(coupleID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, statsTTL).Err()

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *StatsCache) Invalidate(ctx context.Context, coupleID uuid.UUID) error {
	return c.Client.Del(ctx, matchesKey(coupleID)).Err()
}

package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ConnectRedisWithRetry returns the Redis client and a lock client built on it.
// An empty REDIS_ADDRESS disables Redis: both return values are nil and callers
// run without cache and without distributed locks.
func ConnectRedisWithRetry(ctx context.Context, s Settings, maxAttempts int) (*redis.Client, *redislock.Client, error) {
	if s.RedisAddress == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis")
		return nil, nil, nil
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddress,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, s.RedisAddress)
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()

		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, nil, fmt.Errorf("failed to connect redis after %d attempts: %w", attempt, err)
		}
		sleep := backoff(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, s.RedisAddress, err, sleep)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

package database

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("database: redis unavailable")

const (
	redisAttempts      = 3
	redisRetryInterval = 2 * time.Second
)

// ConnectRedis opens a Redis client from a redis:// or rediss:// URL and
// waits for it to answer PING, retrying with a linear backoff.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrRedisUnavailable, err)
	}

	client := redis.NewClient(opts)

	var pingErr error
	for i := range redisAttempts {
		if pingErr = client.Ping(ctx).Err(); pingErr == nil {
			return client, nil
		}

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.Join(ErrRedisUnavailable, ctx.Err())
		case <-time.After(time.Duration(i+1) * redisRetryInterval):
		}
	}

	_ = client.Close()
	return nil, errors.Join(ErrRedisUnavailable, pingErr)
}

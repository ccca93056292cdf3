package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "odkbuild:session"

// Redis stores sessions as JSON values whose TTL matches the session
// lifetime. A per-user set indexes session ids for DeleteByUsername.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store. An empty prefix uses the default.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Create(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	userKey := r.userKey(s.Username)
	current, err := r.client.TTL(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("session: index ttl: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.ID), data, ttl)
		pipe.SAdd(ctx, userKey, s.ID)
		// the index lives as long as its longest session; TTL is negative
		// for a missing key or one without expiry
		if current < ttl {
			pipe.Expire(ctx, userKey, ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return &s, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		return r.client.Del(ctx, r.sessionKey(id)).Err()
	case err != nil:
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		pipe.SRem(ctx, r.userKey(s.Username), id)
		return nil
	})
	return err
}

func (r *Redis) DeleteByUsername(ctx context.Context, username string) error {
	userKey := r.userKey(username)

	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, userKey)

	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) sessionKey(id string) string {
	return r.prefix + ":" + id
}

func (r *Redis) userKey(username string) string {
	return r.prefix + ":user:" + username
}

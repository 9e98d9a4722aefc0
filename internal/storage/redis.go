package storage

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionPrefix = "ghc:sess:"

// RedisStore keeps each session as one Redis hash, so SetNX maps to HSETNX
// and Touch to a single EXPIRE on the hash.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, TTL: ttlOrDefault(ttl)}
}

// DialRedis connects and pings with a short timeout.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func sessionKey(sessionID string) string { return sessionPrefix + sessionID }

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.Client.HGet(ctx, sessionKey(sessionID), key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	hk := sessionKey(sessionID)
	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, hk, key, value)
	pipe.Expire(ctx, hk, ttlOrDefault(s.TTL))
	_, err := pipe.Exec(ctx)
	return err
}

// SetNX runs HSETNX and EXPIRE in one MULTI block: a returned error means
// the key was not set.
func (s *RedisStore) SetNX(ctx context.Context, sessionID, key, value string) (bool, error) {
	hk := sessionKey(sessionID)
	pipe := s.Client.TxPipeline()
	set := pipe.HSetNX(ctx, hk, key, value)
	pipe.Expire(ctx, hk, ttlOrDefault(s.TTL))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return set.Val(), nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Client.HDel(ctx, sessionKey(sessionID), keys...).Err()
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	return s.Client.Expire(ctx, sessionKey(sessionID), ttlOrDefault(s.TTL)).Err()
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore implements session.KeyValueStore on Redis so in-progress sessions
// survive process restarts. Keys are namespaced per session and expire after
// the configured TTL; every write refreshes the whole session's expiry.
type KVStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewKVStore(client *redis.Client, ttl time.Duration) *KVStore {
	return &KVStore{client: client, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, sessionID, key, value string) error {
	return s.client.Set(ctx, s.key(sessionID, key), value, s.ttl).Err()
}

func (s *KVStore) Clear(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(sessionID, key)
	}
	return s.client.Del(ctx, full...).Err()
}

func (s *KVStore) key(sessionID, key string) string {
	return "quiz:session:" + sessionID + ":" + key
}

package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

// DefaultRedisKey is the list feedback entries are pushed onto
const DefaultRedisKey = "feedback:entries"

// RedisStore appends feedback to a Redis list
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store; an empty key uses DefaultRedisKey
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redis: redisClient,
		key:   key,
	}
}

// Append pushes entry onto the end of the list
func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewFeedbackWriteError(fmt.Errorf("failed to marshal feedback: %w", err))
	}

	if err := s.redis.RPush(ctx, s.key, data).Err(); err != nil {
		return errors.NewFeedbackWriteError(err)
	}
	return nil
}

// List returns every entry; entries that fail to decode are skipped
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	values, err := s.redis.LRange(ctx, s.key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for _, v := range values {
		var entry Entry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

package assignment

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCursorStore keeps the round-robin cursor in Redis so multiple engine
// instances rotate over the same worker list. INCR is atomic server-side, so
// concurrent instances never claim the same rotation turn.
type RedisCursorStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCursorStore builds a cursor store over the given client.
func NewRedisCursorStore(client *redis.Client, prefix string) *RedisCursorStore {
	if prefix == "" {
		prefix = "assignment:cursor:"
	}
	return &RedisCursorStore{client: client, prefix: prefix}
}

func (s *RedisCursorStore) Next(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, s.prefix+key).Result()
}

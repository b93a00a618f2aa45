package originpolicy

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisSource reads the allowlist from a Redis key shared by every gateway
// replica, so one SET followed by reloads updates the whole fleet. A
// missing key means the value is absent.
type RedisSource struct {
	Client *redis.Client
	Key    string
}

func (s RedisSource) Name() string { return "redis:" + s.Key }

func (s RedisSource) Load(ctx context.Context) (*string, error) {
	raw, err := s.Client.Get(ctx, s.Key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allowlist from redis: %w", err)
	}
	return &raw, nil
}

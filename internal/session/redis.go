package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pmsync/internal/models"
)

// RedisBackend stores sessions under "session:<key>" with an optional TTL.
type RedisBackend struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend connects to redisURL and pings it once.
func NewRedisBackend(redisURL string, ttl time.Duration) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBackend{Client: client, ttl: ttl}, nil
}

func (r *RedisBackend) Close() error {
	return r.Client.Close()
}

func (r *RedisBackend) Save(ctx context.Context, key string, user models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, "session:"+key, data, r.ttl).Err()
}

func (r *RedisBackend) Load(ctx context.Context, key string) (models.User, error) {
	data, err := r.Client.Get(ctx, "session:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.User{}, ErrNoSession
	}
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return models.User{}, fmt.Errorf("decode session %q: %w", key, err)
	}
	return user, nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, "session:"+key).Err()
}

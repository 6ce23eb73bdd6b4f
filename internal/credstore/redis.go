package credstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	key    string
}

func NewRedis(addr, key string) Store {
	if key == "" {
		key = "secdash:token"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &redisStore{client: client, key: key}
}

func (s *redisStore) Init(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *redisStore) Set(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

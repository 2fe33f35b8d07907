// Package redis keeps every key of the application in a single Redis hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

type KVStore struct {
	client *redis.Client
	hash   string
}

// Connect dials Redis and verifies the connection with a PING.
func Connect(ctx context.Context, opts Options) (*KVStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return New(rdb, opts.Namespace), nil
}

// New wraps an existing client. Keys live in the hash "<namespace>:kv".
func New(client *redis.Client, namespace string) *KVStore {
	if namespace == "" {
		namespace = "mapcask"
	}
	return &KVStore{client: client, hash: namespace + ":kv"}
}

var _ domain.KeyValueStore = (*KVStore)(nil)

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("hget %s: %w", key, err)
	}
	return v, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.hash).Err(); err != nil {
		return fmt.Errorf("del %s: %w", s.hash, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	return s.client.Close()
}

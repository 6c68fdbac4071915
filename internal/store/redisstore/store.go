package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	audioPrefix = "audio:"
	pathScheme  = "redis://"
)

var ErrNotFound = errors.New("redisstore: key not found")

// Store keeps synthesized audio in Redis. Paths it hands out look like
// "redis://audio:<name>".
type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := audioPrefix + name
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return "", err
	}
	return pathScheme + key, nil
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	key, ok := strings.CutPrefix(path, pathScheme)
	if !ok {
		return nil, fmt.Errorf("redisstore: foreign path %q", path)
	}
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}

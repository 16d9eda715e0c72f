package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV хранит состояния диалогов в redis под общим префиксом.
type RedisKV struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisKV: при нулевом ttl записи живут без срока.
func NewRedisKV(client *redis.Client, prefix string, ttl time.Duration) *RedisKV {
	if prefix == "" {
		prefix = "state"
	}
	return &RedisKV{client: client, prefix: prefix + ":", ttl: ttl}
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RedisKV) List(ctx context.Context) ([]Record, error) {
	var records []Record
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		value, err := s.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// ключ успел удалиться между SCAN и GET
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, Record{Key: strings.TrimPrefix(fullKey, s.prefix), Value: value})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (s *RedisKV) Close() error {
	return s.client.Close()
}

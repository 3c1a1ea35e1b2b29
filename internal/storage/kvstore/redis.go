// redis.go — продакшен-реализация Store поверх Redis.
// TTL обеспечивается самим Redis (SET с EX), List — через SCAN MATCH,
// чтобы не блокировать сервер командой KEYS.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore — реализация Store поверх Redis.
type RedisStore struct {
	client *redis.Client
	// keyPrefix — общий префикс ключей (namespace инсталляции)
	keyPrefix string
}

// NewRedisStore создаёт Store поверх существующего клиента Redis.
// keyPrefix добавляется ко всем ключам (например, "fulfillment:").
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Put записывает значение с TTL средствами Redis.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl должен быть положительным, получен %s", ttl)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Get возвращает значение или (nil, false) при отсутствии ключа.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

// Delete удаляет ключ. Отсутствие ключа — не ошибка.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// List возвращает ключи с указанным префиксом через SCAN.
// Возвращаемые ключи очищены от keyPrefix инсталляции.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	fullPrefix := s.keyPrefix + prefix

	iter := s.client.Scan(ctx, 0, fullPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s: %w", prefix, err)
	}

	return keys, nil
}

// Проверка на этапе компиляции
var _ Store = (*RedisStore)(nil)

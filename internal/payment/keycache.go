package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// keyCacheSize — ёмкость кэша секретов подписи.
// Секретов единицы (основной плюс ротационные), ёмкость с запасом.
const keyCacheSize = 8

// secretsCacheKey — единственный ключ кэша: набор секретов загружается
// целиком, чтобы ротация не разъезжалась по отдельным записям.
const secretsCacheKey = "webhook-secrets"

// SecretsLoader загружает актуальный набор секретов подписи
// (основной и ротационные).
type SecretsLoader func(ctx context.Context) ([]string, error)

// SigningKeyCache — кэш секретов подписи уведомлений с TTL.
// Загрузчик и часы инжектируются; истечение TTL приводит к
// перезагрузке при следующем обращении. Ошибка перезагрузки при
// наличии устаревшего значения не фатальна: возвращается последний
// успешно загруженный набор.
type SigningKeyCache struct {
	loader SecretsLoader
	cache  *expirable.LRU[string, []string]

	mu   sync.Mutex
	last []string
}

// NewSigningKeyCache создаёт кэш с заданным TTL.
func NewSigningKeyCache(loader SecretsLoader, ttl time.Duration) *SigningKeyCache {
	return &SigningKeyCache{
		loader: loader,
		cache:  expirable.NewLRU[string, []string](keyCacheSize, nil, ttl),
	}
}

// StaticSecrets — загрузчик с фиксированным набором секретов
// (секреты из конфигурации).
func StaticSecrets(secrets ...string) SecretsLoader {
	return func(context.Context) ([]string, error) {
		return secrets, nil
	}
}

// Secrets возвращает актуальный набор секретов подписи.
func (c *SigningKeyCache) Secrets(ctx context.Context) ([]string, error) {
	if secrets, ok := c.cache.Get(secretsCacheKey); ok {
		return secrets, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// повторная проверка: другой вызов мог успеть перезагрузить
	if secrets, ok := c.cache.Get(secretsCacheKey); ok {
		return secrets, nil
	}

	secrets, err := c.loader(ctx)
	if err != nil {
		if c.last != nil {
			return c.last, nil
		}
		return nil, fmt.Errorf("загрузка секретов подписи: %w", err)
	}
	if len(secrets) == 0 {
		return nil, fmt.Errorf("загрузчик вернул пустой набор секретов")
	}

	c.cache.Add(secretsCacheKey, secrets)
	c.last = secrets
	return secrets, nil
}

// Invalidate сбрасывает кэш. Используется при внеплановой ротации.
func (c *SigningKeyCache) Invalidate() {
	c.cache.Remove(secretsCacheKey)
}

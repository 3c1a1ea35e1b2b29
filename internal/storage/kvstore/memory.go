// memory.go — in-memory реализация Store для разработки и тестов.
// Потокобезопасная карта под sync.RWMutex; истечение TTL проверяется
// лениво при чтении, janitor-горутина периодически вычищает мёртвые
// записи, чтобы карта не росла бесконечно.
package kvstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// memoryEntry — запись in-memory хранилища.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore — in-memory реализация Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now — инжектируемые часы для тестов
	now func() time.Time

	cancel context.CancelFunc
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock создаёт хранилище с инжектируемыми часами.
// Используется в тестах для детерминированной проверки TTL.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// StartJanitor запускает фоновую очистку истёкших записей.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	jCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-jCtx.Done():
				return
			case <-ticker.C:
				s.purgeExpired()
			}
		}
	}()
}

// StopJanitor останавливает фоновую очистку.
func (s *MemoryStore) StopJanitor() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Put записывает значение с TTL.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl должен быть положительным, получен %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Копия значения: защищаемся от мутаций буфера вызывающим кодом
	copied := make([]byte, len(value))
	copy(copied, value)

	s.entries[key] = memoryEntry{
		value:     copied,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get возвращает значение или (nil, false), если ключа нет или TTL истёк.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return nil, false, nil
	}

	copied := make([]byte, len(entry.value))
	copy(copied, entry.value)
	return copied, true, nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// List возвращает ключи с указанным префиксом (живые).
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var keys []string
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// TTL возвращает остаток времени жизни ключа.
// Используется планировщиком напоминаний для re-put с сохранением TTL.
func (s *MemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	left := entry.expiresAt.Sub(s.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// purgeExpired вычищает истёкшие записи из карты.
func (s *MemoryStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Проверка на этапе компиляции
var _ Store = (*MemoryStore)(nil)

// Пакет packagestore — durable blob-хранилище доставленных пакетов.
//
// Пакет — единственный долговечный артефакт системы; всё остальное —
// ephemeral-обвязка. Метаданные хранятся вместе с blob-ом и являются
// единственным источником истины для решения об удалении: sweep обязан
// работать по одним метаданным, без ephemeral-хранилища.
package packagestore

import (
	"context"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// Entry — элемент листинга durable store.
type Entry struct {
	// Name — имя blob-а (имя файла пакета)
	Name string
	// Metadata — метаданные пакета
	Metadata *model.PackageMetadata
}

// Store — контракт durable-хранилища пакетов.
type Store interface {
	// Put сохраняет blob с метаданными. Запись по существующему имени
	// перезаписывает blob (last-write-wins): имена детерминированы по
	// paymentSessionID, поэтому дубль-записи схлопываются.
	Put(ctx context.Context, name string, data []byte, meta *model.PackageMetadata) error

	// Get возвращает blob и метаданные, либо (nil, nil, false) при
	// отсутствии. Отсутствие — штатное состояние (пакет истёк).
	Get(ctx context.Context, name string) ([]byte, *model.PackageMetadata, bool, error)

	// Head возвращает только метаданные, либо (nil, false) при отсутствии.
	Head(ctx context.Context, name string) (*model.PackageMetadata, bool, error)

	// Delete удаляет blob и метаданные. Отсутствие — не ошибка.
	Delete(ctx context.Context, name string) error

	// List возвращает все пакеты с метаданными.
	// Используется sweep-ом и fallback-поиском по paymentSessionID.
	List(ctx context.Context) ([]Entry, error)
}

// FindBySession ищет пакет по paymentSessionID сканом листинга.
// Fallback на случай истёкшего ephemeral-индекса.
func FindBySession(ctx context.Context, s Store, paymentSessionID string) (*Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Metadata != nil && entries[i].Metadata.PaymentSessionID == paymentSessionID {
			return &entries[i], nil
		}
	}
	return nil, nil
}

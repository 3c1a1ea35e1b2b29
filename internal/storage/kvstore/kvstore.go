// Пакет kvstore — ephemeral key/value хранилище с per-key TTL.
//
// Держит записи конвейера: ReminderSession (session/<id>),
// PendingCheckout (pending/<sid>) и download-индекс (download/<sid>).
// Истечение TTL неотличимо от явного удаления: все потребители обязаны
// трактовать «не найдено» как штатное восстановимое состояние.
// Compare-and-swap не предоставляется — вызывающий код обязан быть
// идемпотентным при гонках get-then-put.
package kvstore

import (
	"context"
	"time"
)

// Префиксы ключей конвейера доставки.
const (
	// PrefixSession — сохранённые сессии напоминаний
	PrefixSession = "session/"
	// PrefixPending — ожидающие checkout-и
	PrefixPending = "pending/"
	// PrefixDownload — индекс paymentSessionID → имя файла пакета
	PrefixDownload = "download/"
)

// SessionKey возвращает ключ записи ReminderSession.
func SessionKey(sessionID string) string { return PrefixSession + sessionID }

// PendingKey возвращает ключ записи PendingCheckout.
func PendingKey(paymentSessionID string) string { return PrefixPending + paymentSessionID }

// DownloadKey возвращает ключ индексной записи download.
func DownloadKey(paymentSessionID string) string { return PrefixDownload + paymentSessionID }

// Store — контракт ephemeral-хранилища.
type Store interface {
	// Put записывает значение с TTL. ttl <= 0 недопустим:
	// каждая запись этого хранилища ограничена по времени жизни.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get возвращает значение или (nil, false), если ключ отсутствует
	// либо его TTL истёк. Отсутствие — не ошибка.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete удаляет ключ. Удаление отсутствующего ключа — не ошибка.
	Delete(ctx context.Context, key string) error

	// List возвращает ключи с указанным префиксом.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Пакет payment — интеграция с платёжным процессором.
//
// Процессор создаёт checkout-сессии и шлёт подписанные уведомления
// об оплате. Metadata сессии — сторонний канал с жёстким лимитом
// размера: значения усекаются до 500 байт и могут быть неполными.
package payment

import (
	"context"
)

// MaxMetadataValueLen — лимит процессора на значение metadata (байты).
// Усечение по байтам, lossy: обрезанный HTML штатно восстанавливается
// деградационным путём доставки.
const MaxMetadataValueLen = 500

// Статусы оплаты checkout-сессии.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// CheckoutSession — сессия оплаты на стороне процессора.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	CustomerEmail string            `json:"customer_email"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Created       int64             `json:"created"`
	Metadata      map[string]string `json:"metadata"`
}

// CreateSessionRequest — параметры новой checkout-сессии.
type CreateSessionRequest struct {
	// ProductName — название позиции в checkout
	ProductName string
	// Description — описание позиции
	Description string
	// AmountCents — сумма в центах
	AmountCents int64
	// Currency — валюта (ISO 4217, нижний регистр)
	Currency string
	// CustomerEmail — email плательщика (опционально)
	CustomerEmail string
	// SuccessURL, CancelURL — редиректы после оплаты
	SuccessURL string
	CancelURL  string
	// Metadata — сторонний канал данных заказа.
	// Значения усекаются до MaxMetadataValueLen байт.
	Metadata map[string]string
}

// Processor — контракт платёжного процессора.
type Processor interface {
	// CreateSession создаёт checkout-сессию.
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CheckoutSession, error)

	// GetSession возвращает сессию по идентификатору.
	GetSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// TruncateMetadata возвращает копию metadata со значениями,
// усечёнными до MaxMetadataValueLen байт.
func TruncateMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if len(v) > MaxMetadataValueLen {
			v = v[:MaxMetadataValueLen]
		}
		out[k] = v
	}
	return out
}

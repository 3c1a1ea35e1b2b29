package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance — окно допуска возраста подписи уведомления.
const DefaultTolerance = 5 * time.Minute

// Ошибки проверки подлинности уведомления.
var (
	ErrMissingSignature = fmt.Errorf("уведомление без подписи")
	ErrBadSignature     = fmt.Errorf("подпись уведомления не совпала")
	ErrStaleSignature   = fmt.Errorf("подпись уведомления вне окна допуска")
)

// Notification — уведомление процессора об оплате.
type Notification struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// EventCheckoutCompleted — тип уведомления о завершённом checkout.
const EventCheckoutCompleted = "checkout.session.completed"

// VerifyNotification проверяет подпись уведомления и парсит его тело.
// Формат заголовка: `t=<unix>,v1=<hex>`. Подпись — HMAC-SHA256 от
// `<t>.<body>` любым из секретов (несколько допустимы на время
// ротации). Сравнение — constant-time. Никакая ошибка проверки не
// раскрывает деталей подписи.
func VerifyNotification(body []byte, header string, secrets []string, tolerance time.Duration, now time.Time) (*Notification, error) {
	if header == "" {
		return nil, ErrMissingSignature
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, ErrBadSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return nil, ErrMissingSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return nil, ErrStaleSignature
	}

	signedPayload := strconv.FormatInt(ts, 10) + "." + string(body)
	matched := false
	for _, secret := range secrets {
		expected := computeSignature(signedPayload, secret)
		for _, sig := range sigs {
			if hmac.Equal([]byte(expected), []byte(sig)) {
				matched = true
			}
		}
	}
	if !matched {
		return nil, ErrBadSignature
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("декодирование уведомления: %w", err)
	}

	return &n, nil
}

// SignHeader строит заголовок подписи для тела уведомления.
// Используется в тестах и при повторной отправке во внутренние среды.
func SignHeader(body []byte, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(ts+"."+string(body), secret))
}

// computeSignature — HMAC-SHA256 от payload в hex.
func computeSignature(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

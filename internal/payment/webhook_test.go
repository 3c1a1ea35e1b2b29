package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var testBody = []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_a1b2c3","payment_status":"paid","customer_email":"client@example.com","metadata":{"businessName":"Acme Co"}}}}`)

func TestVerifyNotificationValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := SignHeader(testBody, "whsec_test", now)

	n, err := VerifyNotification(testBody, header, []string{"whsec_test"}, DefaultTolerance, now)
	if err != nil {
		t.Fatalf("VerifyNotification вернул ошибку: %v", err)
	}
	if n.Type != EventCheckoutCompleted {
		t.Errorf("тип уведомления: хотели %q, получили %q", EventCheckoutCompleted, n.Type)
	}
	if n.Data.Object.ID != "cs_test_a1b2c3" {
		t.Errorf("session id: хотели %q, получили %q", "cs_test_a1b2c3", n.Data.Object.ID)
	}
	if n.Data.Object.Metadata["businessName"] != "Acme Co" {
		t.Errorf("metadata не распарсилась: %v", n.Data.Object.Metadata)
	}
}

func TestVerifyNotificationRotatedSecret(t *testing.T) {
	now := time.Now()
	header := SignHeader(testBody, "whsec_old", now)

	// старый секрет ещё в наборе на время ротации
	if _, err := VerifyNotification(testBody, header, []string{"whsec_new", "whsec_old"}, DefaultTolerance, now); err != nil {
		t.Errorf("подпись старым секретом из набора отклонена: %v", err)
	}
}

func TestVerifyNotificationRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := SignHeader(testBody, "whsec_test", now)

	tests := []struct {
		name    string
		body    []byte
		header  string
		now     time.Time
		wantErr error
	}{
		{"пустой заголовок", testBody, "", now, ErrMissingSignature},
		{"мусор в заголовке", testBody, "nonsense", now, ErrMissingSignature},
		{"чужой секрет", testBody, SignHeader(testBody, "whsec_wrong", now), now, ErrBadSignature},
		{"подменённое тело", []byte(`{"id":"evt_2"}`), valid, now, ErrBadSignature},
		{"протухшая подпись", testBody, valid, now.Add(DefaultTolerance + time.Minute), ErrStaleSignature},
		{"подпись из будущего", testBody, valid, now.Add(-DefaultTolerance - time.Minute), ErrStaleSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyNotification(tt.body, tt.header, []string{"whsec_test"}, DefaultTolerance, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("хотели %v, получили %v", tt.wantErr, err)
			}
		})
	}
}

func TestTruncateMetadata(t *testing.T) {
	long := make([]byte, MaxMetadataValueLen+100)
	for i := range long {
		long[i] = 'a'
	}

	m := TruncateMetadata(map[string]string{
		"short": "value",
		"long":  string(long),
	})

	if m["short"] != "value" {
		t.Errorf("короткое значение изменилось: %q", m["short"])
	}
	if len(m["long"]) != MaxMetadataValueLen {
		t.Errorf("длина усечённого значения: хотели %d, получили %d", MaxMetadataValueLen, len(m["long"]))
	}
}

func TestSigningKeyCacheLoadsOnce(t *testing.T) {
	calls := 0
	cache := NewSigningKeyCache(func(context.Context) ([]string, error) {
		calls++
		return []string{"whsec_test"}, nil
	}, time.Hour)

	for i := 0; i < 3; i++ {
		secrets, err := cache.Secrets(context.Background())
		if err != nil {
			t.Fatalf("Secrets вернул ошибку: %v", err)
		}
		if len(secrets) != 1 || secrets[0] != "whsec_test" {
			t.Fatalf("неожиданный набор секретов: %v", secrets)
		}
	}
	if calls != 1 {
		t.Errorf("количество загрузок: хотели 1, получили %d", calls)
	}
}

func TestSigningKeyCacheInvalidate(t *testing.T) {
	calls := 0
	cache := NewSigningKeyCache(func(context.Context) ([]string, error) {
		calls++
		return []string{fmt.Sprintf("whsec_%d", calls)}, nil
	}, time.Hour)

	if _, err := cache.Secrets(context.Background()); err != nil {
		t.Fatalf("Secrets вернул ошибку: %v", err)
	}
	cache.Invalidate()
	secrets, err := cache.Secrets(context.Background())
	if err != nil {
		t.Fatalf("Secrets после Invalidate: %v", err)
	}
	if secrets[0] != "whsec_2" {
		t.Errorf("после Invalidate хотели перезагрузку, получили %v", secrets)
	}
	if calls != 2 {
		t.Errorf("количество загрузок: хотели 2, получили %d", calls)
	}
}

func TestSigningKeyCacheFallsBackOnError(t *testing.T) {
	calls := 0
	cache := NewSigningKeyCache(func(context.Context) ([]string, error) {
		calls++
		if calls > 1 {
			return nil, fmt.Errorf("хранилище секретов недоступно")
		}
		return []string{"whsec_test"}, nil
	}, time.Hour)

	if _, err := cache.Secrets(context.Background()); err != nil {
		t.Fatalf("первая загрузка: %v", err)
	}
	cache.Invalidate()

	secrets, err := cache.Secrets(context.Background())
	if err != nil {
		t.Fatalf("ожидали fallback на последний набор, получили ошибку: %v", err)
	}
	if secrets[0] != "whsec_test" {
		t.Errorf("fallback вернул не последний набор: %v", secrets)
	}
}

func TestStaticSecrets(t *testing.T) {
	loader := StaticSecrets("a", "b")
	secrets, err := loader(context.Background())
	if err != nil {
		t.Fatalf("StaticSecrets вернул ошибку: %v", err)
	}
	if len(secrets) != 2 {
		t.Errorf("количество секретов: хотели 2, получили %d", len(secrets))
	}
}

package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockProcessor создаёт mock HTTP-сервер платёжного процессора.
// handler обрабатывает запросы к /v1/checkout/sessions.
func setupMockProcessor(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		if handler != nil {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/checkout/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if handler != nil {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "sk_test_secret", server.Client(), testLogger())
	return server, client
}

// TestClient_CreateSession проверяет создание checkout-сессии.
func TestClient_CreateSession(t *testing.T) {
	var gotForm map[string]string

	_, client := setupMockProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("ожидался метод POST, получен %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_secret" {
			t.Errorf("неожиданный заголовок Authorization: %s", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("неожиданный Content-Type: %s", ct)
		}

		if err := r.ParseForm(); err != nil {
			t.Fatalf("ошибка разбора формы: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CheckoutSession{
			ID:            "cs_test_123",
			URL:           "https://pay.example.com/cs_test_123",
			PaymentStatus: PaymentStatusUnpaid,
		})
	})

	session, err := client.CreateSession(context.Background(), &CreateSessionRequest{
		ProductName:   "Website Download + Lifetime Hosting",
		AmountCents:   5000,
		Currency:      "usd",
		CustomerEmail: "client@example.com",
		SuccessURL:    "https://site.example.com/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://site.example.com/",
		Metadata: map[string]string{
			"businessName": "Моя пекарня",
			"siteHTML":     strings.Repeat("x", MaxMetadataValueLen+100),
		},
	})
	if err != nil {
		t.Fatalf("ошибка создания сессии: %v", err)
	}

	if session.ID != "cs_test_123" {
		t.Errorf("ожидался ID cs_test_123, получен %s", session.ID)
	}
	if session.URL == "" {
		t.Error("ожидался непустой URL checkout")
	}

	if gotForm["mode"] != "payment" {
		t.Errorf("ожидался mode=payment, получен %s", gotForm["mode"])
	}
	if gotForm["line_items[0][price_data][unit_amount]"] != "5000" {
		t.Errorf("неожиданный unit_amount: %s", gotForm["line_items[0][price_data][unit_amount]"])
	}
	if gotForm["customer_email"] != "client@example.com" {
		t.Errorf("неожиданный customer_email: %s", gotForm["customer_email"])
	}
	if gotForm["metadata[businessName]"] != "Моя пекарня" {
		t.Errorf("неожиданная metadata[businessName]: %s", gotForm["metadata[businessName]"])
	}
	// siteHTML должен быть усечён до лимита процессора
	if got := len([]rune(gotForm["metadata[siteHTML]"])); got > MaxMetadataValueLen {
		t.Errorf("metadata[siteHTML] не усечена: длина %d", got)
	}
}

// TestClient_GetSession проверяет получение сессии по идентификатору.
func TestClient_GetSession(t *testing.T) {
	_, client := setupMockProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("ожидался метод GET, получен %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/cs_test_456") {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CheckoutSession{
			ID:            "cs_test_456",
			PaymentStatus: PaymentStatusPaid,
			CustomerEmail: "client@example.com",
			Metadata: map[string]string{
				"businessName": "Barber Shop",
			},
		})
	})

	session, err := client.GetSession(context.Background(), "cs_test_456")
	if err != nil {
		t.Fatalf("ошибка получения сессии: %v", err)
	}

	if session.PaymentStatus != PaymentStatusPaid {
		t.Errorf("ожидался статус paid, получен %s", session.PaymentStatus)
	}
	if session.Metadata["businessName"] != "Barber Shop" {
		t.Errorf("неожиданная metadata: %v", session.Metadata)
	}
}

// TestClient_ErrorStatus проверяет обработку ошибочного статуса API.
func TestClient_ErrorStatus(t *testing.T) {
	_, client := setupMockProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"message": "Invalid API key"}}`))
	})

	_, err := client.GetSession(context.Background(), "cs_test_789")
	if err == nil {
		t.Fatal("ожидалась ошибка при статусе 402")
	}
	if !strings.Contains(err.Error(), "402") {
		t.Errorf("ошибка должна содержать статус-код: %v", err)
	}
}

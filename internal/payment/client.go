package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client — HTTP-клиент к checkout API платёжного процессора.
// API принимает form-encoded запросы с Bearer-авторизацией.
type Client struct {
	baseURL   string // Базовый URL API (без trailing slash)
	secretKey string // Секретный ключ API

	httpClient *http.Client
	logger     *slog.Logger
}

var _ Processor = (*Client)(nil)

// NewClient создаёт клиент к API платёжного процессора.
// httpClient — HTTP-клиент (может содержать TLS конфигурацию).
func NewClient(baseURL, secretKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "payment_client")),
	}
}

// CreateSession создаёт checkout-сессию.
// Значения metadata усекаются до лимита процессора.
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CheckoutSession, error) {
	data := url.Values{}
	data.Set("mode", "payment")
	data.Set("payment_method_types[0]", "card")
	data.Set("line_items[0][price_data][currency]", req.Currency)
	data.Set("line_items[0][price_data][product_data][name]", req.ProductName)
	if req.Description != "" {
		data.Set("line_items[0][price_data][product_data][description]", req.Description)
	}
	data.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	data.Set("line_items[0][quantity]", "1")
	data.Set("success_url", req.SuccessURL)
	data.Set("cancel_url", req.CancelURL)
	if req.CustomerEmail != "" {
		data.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range TruncateMetadata(req.Metadata) {
		data.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session CheckoutSession
	if err := c.doForm(ctx, http.MethodPost, "/v1/checkout/sessions", data, &session); err != nil {
		return nil, err
	}

	c.logger.Debug("checkout-сессия создана",
		slog.String("session_id", session.ID),
	)

	return &session, nil
}

// GetSession возвращает checkout-сессию по идентификатору.
func (c *Client) GetSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.doForm(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// doForm выполняет form-encoded запрос к API процессора с авторизацией.
func (c *Client) doForm(ctx context.Context, method, path string, data url.Values, target any) error {
	var bodyReader io.Reader
	if data != nil {
		bodyReader = strings.NewReader(data.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("создание запроса к процессору: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к платёжному процессору: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("платёжный процессор вернул статус %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("декодирование ответа процессора: %w", err)
	}

	return nil
}

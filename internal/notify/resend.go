package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ResendClient — HTTP-клиент к email API (Resend-совместимый:
// POST /emails с Bearer-авторизацией).
type ResendClient struct {
	baseURL string
	apiKey  string

	httpClient *http.Client
	logger     *slog.Logger
}

var _ Mailer = (*ResendClient)(nil)

// NewResendClient создаёт клиент к email API.
func NewResendClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *ResendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &ResendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "email_client")),
	}
}

// Send отправляет письмо.
func (c *ResendClient) Send(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("сериализация письма: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("создание запроса к email API: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к email API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("декодирование ответа email API: %w", err)
	}

	c.logger.Debug("письмо отправлено",
		slog.String("email_id", result.ID),
		slog.String("subject", msg.Subject),
	)

	return nil
}

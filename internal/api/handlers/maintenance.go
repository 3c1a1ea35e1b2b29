// maintenance.go — обработчики ручных операций обслуживания.
// POST /api/v1/maintenance/recover — сверка заказа с процессором.
// POST /api/v1/maintenance/sweep — внеплановый запуск очистки пакетов.
// POST /api/v1/maintenance/reminders — внеплановый проход напоминаний.
// Все операции требуют admin scope (проверяется middleware-ом роутера).
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/service"
)

// recoverRequest — тело запроса ручной сверки.
type recoverRequest struct {
	PaymentSessionID string `json:"payment_session_id"`
}

// handleRecover — реализация POST /api/v1/maintenance/recover.
func (h *APIHandler) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}
	if req.PaymentSessionID == "" {
		apierrors.ValidationError(w, "Поле payment_session_id обязательно")
		return
	}

	ref, err := h.fulfillment.Reconcile(r.Context(), req.PaymentSessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentIncomplete):
			apierrors.PaymentIncomplete(w, "Оплата по сессии не завершена")
		case errors.Is(err, service.ErrMalformedArtifact):
			apierrors.MalformedArtifact(w, "Артефакт заказа не подлежит упаковке")
		default:
			h.logger.Error("ошибка ручной сверки",
				slog.String("payment_session_id", req.PaymentSessionID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Сверка не выполнена")
		}
		return
	}
	if ref == nil {
		apierrors.NotFound(w, "Пакет не найден после сверки")
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

// handleSweep — реализация POST /api/v1/maintenance/sweep.
func (h *APIHandler) handleSweep(w http.ResponseWriter, r *http.Request) {
	result := h.sweep.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"scanned": result.ScannedCount,
		"deleted": result.DeletedCount,
		"errors":  result.Errors,
	})
}

// handleReminders — реализация POST /api/v1/maintenance/reminders.
func (h *APIHandler) handleReminders(w http.ResponseWriter, r *http.Request) {
	result := h.reminder.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"scanned": result.ScannedCount,
		"sent":    result.SentCount,
		"purged":  result.PurgedCount,
		"errors":  result.Errors,
	})
}

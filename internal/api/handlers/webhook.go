// webhook.go — обработчик POST /api/v1/webhook.
// Приём уведомлений платёжного процессора. Аутентичность проверяется
// подписью тела, JWT не используется. Процессор ретраит недоставленные
// уведомления, поэтому любой ответ 2xx означает «принято и обработано».
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/payment"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/service"
)

// signatureHeader — заголовок подписи уведомления.
const signatureHeader = "Notification-Signature"

// maxNotificationSize — лимит тела уведомления (1 МБ).
const maxNotificationSize = 1 << 20

// handleWebhook — реализация POST /api/v1/webhook.
func (h *APIHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationSize))
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать тело уведомления")
		return
	}

	err = h.fulfillment.HandleNotification(r.Context(), body, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, payment.ErrMissingSignature),
		errors.Is(err, payment.ErrBadSignature),
		errors.Is(err, payment.ErrStaleSignature):
		apierrors.AuthenticityError(w, "Подпись уведомления не прошла проверку")
	case errors.Is(err, service.ErrMalformedArtifact):
		// ретраи бесполезны: артефакт не восстановим
		apierrors.MalformedArtifact(w, "Артефакт заказа не подлежит упаковке")
	default:
		h.logger.Error("ошибка обработки уведомления",
			slog.String("error", err.Error()),
		)
		// 500 — процессор повторит доставку уведомления
		apierrors.InternalError(w, "Не удалось обработать уведомление")
	}
}

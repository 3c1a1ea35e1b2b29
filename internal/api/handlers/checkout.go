// checkout.go — обработчик POST /api/v1/checkout.
// Создание checkout-сессии по сохранённой сессии или артефакту напрямую.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/service"
)

// startCheckoutRequest — тело запроса создания checkout.
// Либо session_id сохранённой сессии, либо артефакт целиком.
type startCheckoutRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Email        string `json:"email,omitempty"`
	HTMLContent  string `json:"html_content,omitempty"`
	WantHosting  bool   `json:"want_hosting,omitempty"`
}

// handleStartCheckout — реализация POST /api/v1/checkout.
func (h *APIHandler) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	svcReq := &service.CheckoutRequest{SessionID: req.SessionID}
	if req.SessionID == "" {
		svcReq.Artifact = &model.DesignArtifact{
			BusinessName: req.BusinessName,
			Email:        req.Email,
			HTMLContent:  req.HTMLContent,
			WantHosting:  req.WantHosting,
		}
		if err := svcReq.Artifact.Validate(); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}

	handle, err := h.fulfillment.StartCheckout(r.Context(), svcReq)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			apierrors.NotFound(w, "Сохранённая сессия не найдена или истекла")
			return
		}
		h.logger.Error("ошибка создания checkout",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось создать checkout-сессию")
		return
	}

	writeJSON(w, http.StatusCreated, handle)
}

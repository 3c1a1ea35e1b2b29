// sessions.go — обработчик POST /api/v1/sessions.
// Сохранение дизайн-артефакта с заведением сессии напоминаний.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/middleware"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// saveSessionRequest — тело запроса сохранения дизайна.
type saveSessionRequest struct {
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
	HTMLContent  string `json:"html_content"`
	WantHosting  bool   `json:"want_hosting"`
}

// saveSessionResponse — ответ с идентификатором сохранённой сессии.
type saveSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// handleSaveSession — реализация POST /api/v1/sessions.
func (h *APIHandler) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var req saveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	artifact := &model.DesignArtifact{
		BusinessName: req.BusinessName,
		Email:        req.Email,
		HTMLContent:  req.HTMLContent,
		WantHosting:  req.WantHosting,
	}

	// аутентифицированный пользователь может не указывать email явно
	if artifact.Email == "" {
		if user := middleware.UserFromContext(r.Context()); user != nil {
			artifact.Email = user.Email
		}
	}

	if err := artifact.Validate(); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sessionID, err := h.fulfillment.Save(r.Context(), artifact)
	if err != nil {
		h.logger.Error("ошибка сохранения дизайна",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось сохранить дизайн")
		return
	}

	writeJSON(w, http.StatusCreated, saveSessionResponse{
		SessionID:   sessionID,
		CheckoutURL: "/checkout/" + sessionID,
	})
}

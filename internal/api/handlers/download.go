// download.go — обработчики выдачи пакетов.
// GET /api/v1/download?session_id= — ссылка на пакет по платёжной сессии.
// GET /download/{file} — отдача blob-а пакета.
// GET /api/v1/state/{id} — состояние заказа.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
)

// handleResolveDownload — реализация GET /api/v1/download.
func (h *APIHandler) handleResolveDownload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		apierrors.ValidationError(w, "Параметр session_id обязателен")
		return
	}

	ref, err := h.fulfillment.ResolveDownload(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("ошибка разрешения download-ссылки",
			slog.String("payment_session_id", sessionID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось получить ссылку на пакет")
		return
	}
	if ref == nil {
		// недоставлен либо истёк — для клиента одно и то же
		apierrors.LinkExpired(w, "Пакет недоступен: ссылка истекла или заказ не доставлен")
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

// handleServePackage — реализация GET /download/{file}.
func (h *APIHandler) handleServePackage(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "file")
	if fileName == "" {
		apierrors.ValidationError(w, "Имя файла обязательно")
		return
	}

	data, meta, found, err := h.fulfillment.FetchPackage(r.Context(), fileName)
	if err != nil {
		h.logger.Error("ошибка чтения пакета",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось прочитать пакет")
		return
	}
	if !found {
		apierrors.LinkExpired(w, "Пакет недоступен: ссылка истекла")
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// stateResponse — ответ GET /api/v1/state/{id}.
type stateResponse struct {
	State        string `json:"state"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
}

// handleState — реализация GET /api/v1/state/{id}.
func (h *APIHandler) handleState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.ValidationError(w, "Идентификатор обязателен")
		return
	}

	res, err := h.fulfillment.State(r.Context(), id)
	if err != nil {
		h.logger.Error("ошибка вычисления состояния",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось вычислить состояние заказа")
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{
		State:        string(res.State),
		Inconsistent: res.Inconsistent,
	})
}

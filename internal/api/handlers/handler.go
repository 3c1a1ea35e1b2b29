// handler.go — основной обработчик API Fulfillment Module.
// Тонкие обёртки над сервисным слоем: десериализация, валидация,
// маппинг ошибок конвейера на коды API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/errors"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/middleware"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/service"
)

// ScopeAdmin — scope для maintenance-операций.
const ScopeAdmin = "fulfillment:admin"

// APIHandler — основной обработчик API.
type APIHandler struct {
	fulfillment *service.Fulfillment
	sweep       *service.SweepService
	reminder    *service.ReminderService
	health      *HealthHandler
	auth        *middleware.JWTAuth
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// auth может быть nil — тогда все запросы анонимны, а maintenance
// закрыт (удобно для локальной разработки без JWKS).
func NewAPIHandler(
	fulfillment *service.Fulfillment,
	sweep *service.SweepService,
	reminder *service.ReminderService,
	health *HealthHandler,
	auth *middleware.JWTAuth,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		fulfillment: fulfillment,
		sweep:       sweep,
		reminder:    reminder,
		health:      health,
		auth:        auth,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// Routes монтирует все маршруты API на роутер.
func (h *APIHandler) Routes(r chi.Router) {
	// health и метрики — без аутентификации
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	// webhook процессора: аутентичность проверяется подписью тела,
	// не JWT
	r.Post("/api/v1/webhook", h.handleWebhook)

	// пользовательская поверхность: аутентификация опциональна
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth.OptionalAuth())
		}
		r.Post("/api/v1/sessions", h.handleSaveSession)
		r.Post("/api/v1/checkout", h.handleStartCheckout)
		r.Get("/api/v1/download", h.handleResolveDownload)
		r.Get("/api/v1/state/{id}", h.handleState)
		r.Get("/download/{file}", h.handleServePackage)
	})

	// maintenance: обязательная аутентификация + admin scope
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth.Middleware())
			r.Use(middleware.RequireScope(ScopeAdmin))
		} else {
			r.Use(denyAll)
		}
		r.Post("/api/v1/maintenance/recover", h.handleRecover)
		r.Post("/api/v1/maintenance/sweep", h.handleSweep)
		r.Post("/api/v1/maintenance/reminders", h.handleReminders)
	})
}

// denyAll закрывает maintenance при отсутствии настроенной аутентификации.
func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.Unauthorized(w, "Аутентификация не настроена, maintenance недоступен")
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

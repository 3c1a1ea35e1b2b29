// health.go — обработчики health endpoints Fulfillment Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (ephemeral и durable хранилища доступны)
// /metrics — Prometheus метрики
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/kvstore"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/packagestore"
)

// Version — версия модуля, подставляется при сборке через ldflags.
var Version = "dev"

// serviceName — имя сервиса в health-ответах.
const serviceName = "fulfillment-module"

// readinessTimeout — таймаут проверки одной зависимости.
const readinessTimeout = 5 * time.Second

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	kv          kvstore.Store
	packages    packagestore.Store
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(kv kvstore.Store, packages packagestore.Store) *HealthHandler {
	return &HealthHandler{
		kv:          kv,
		packages:    packages,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Ephemeral healthCheckResult `json:"ephemeral"`
		Durable   healthCheckResult `json:"durable"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Всегда 200, пока процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. 503, если хоть одно хранилище недоступно.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Service:   serviceName,
	}

	resp.Checks.Ephemeral = h.checkEphemeral(r.Context())
	resp.Checks.Durable = h.checkDurable(r.Context())

	status := http.StatusOK
	if resp.Checks.Ephemeral.Status != "ok" || resp.Checks.Durable.Status != "ok" {
		resp.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// checkEphemeral проверяет доступность ephemeral-хранилища чтением
// заведомо отсутствующего ключа.
func (h *HealthHandler) checkEphemeral(ctx context.Context) healthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	if _, _, err := h.kv.Get(ctx, "healthcheck/probe"); err != nil {
		return healthCheckResult{Status: "fail", Message: err.Error()}
	}
	return healthCheckResult{Status: "ok"}
}

// checkDurable проверяет доступность durable-хранилища head-запросом
// заведомо отсутствующего пакета.
func (h *HealthHandler) checkDurable(ctx context.Context) healthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	if _, _, err := h.packages.Head(ctx, "healthcheck-probe.zip"); err != nil {
		return healthCheckResult{Status: "fail", Message: err.Error()}
	}
	return healthCheckResult{Status: "ok"}
}

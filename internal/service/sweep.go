// sweep.go — фоновая очистка истёкших пакетов durable store.
//
// Sweep работает только по метаданным пакетов: ephemeral-записи к этому
// моменту могли истечь, их наличие не требуется. Удаление пакета до
// прихода sweep неотличимо для клиента от «ссылка истекла» — чтение
// истёкшего пакета и без того возвращает отсутствие.
//
// Запускается как горутина с периодическим тикером (FM_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/packagestore"
)

// Prometheus метрики sweep
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_sweep_runs_total",
		Help: "Общее количество запусков sweep",
	})

	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_sweep_packages_deleted_total",
		Help: "Общее количество пакетов, удалённых sweep-ом",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_sweep_duration_seconds",
		Help:    "Длительность выполнения sweep в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска sweep.
type SweepResult struct {
	// ScannedCount — количество просмотренных пакетов
	ScannedCount int
	// DeletedCount — количество удалённых пакетов
	DeletedCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweepService — сервис фоновой очистки пакетов.
type SweepService struct {
	packages packagestore.Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweepService создаёт сервис sweep.
func NewSweepService(packages packagestore.Store, interval time.Duration, logger *slog.Logger) *SweepService {
	return &SweepService{
		packages: packages,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweep")),
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *SweepService) WithClock(now func() time.Time) *SweepService {
	s.now = now
	return s
}

// Start запускает фоновую горутину sweep с периодическим тикером.
func (s *SweepService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(sweepCtx)

	s.logger.Info("sweep запущен",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновый процесс sweep.
func (s *SweepService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("sweep остановлен")
}

// run — основной цикл фоновой горутины.
func (s *SweepService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл sweep.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (s *SweepService) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	now := s.now().UTC()

	entries, err := s.packages.List(ctx)
	if err != nil {
		s.logger.Error("sweep: ошибка листинга пакетов",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	result.ScannedCount = len(entries)
	for _, entry := range entries {
		if !entry.Metadata.IsExpired(now) {
			continue
		}

		if err := s.packages.Delete(ctx, entry.Name); err != nil {
			s.logger.Error("sweep: ошибка удаления пакета",
				slog.String("file_name", entry.Name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		s.logger.Debug("sweep: пакет удалён",
			slog.String("file_name", entry.Name),
			slog.Time("expired_at", entry.Metadata.ExpiresAt),
		)
		result.DeletedCount++
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepDeletedTotal.Add(float64(result.DeletedCount))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("sweep завершён",
		slog.Int("scanned", result.ScannedCount),
		slog.Int("deleted", result.DeletedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

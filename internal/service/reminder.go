// reminder.go — планировщик напоминаний о сохранённых дизайнах.
//
// Проходит по записям session/, шлёт не более трёх напоминаний на
// сессию с гейтом «не чаще раза в ~сутки» и эскалацией тона по
// оставшимся дням. Обновлённая запись кладётся обратно с остатком
// исходного TTL: напоминания никогда не продлевают жизнь сессии.
//
// Запускается как горутина с периодическим тикером (FM_REMINDER_INTERVAL).
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/notify"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/kvstore"
)

// MaxReminders — максимум напоминаний на сессию.
const MaxReminders = 3

// reminderGate — минимальный интервал между напоминаниями.
// Сутки минус час: суточный cron со сдвигом расписания не должен
// пропускать день.
const reminderGate = 23 * time.Hour

// Prometheus метрики планировщика напоминаний
var (
	reminderRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_reminder_runs_total",
		Help: "Общее количество запусков планировщика напоминаний",
	})

	remindersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_reminders_sent_total",
		Help: "Общее количество отправленных напоминаний",
	})

	reminderSessionsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_reminder_sessions_purged_total",
		Help: "Количество истёкших сессий, удалённых планировщиком",
	})
)

// ReminderResult — результат одного запуска планировщика.
type ReminderResult struct {
	// ScannedCount — количество просмотренных сессий
	ScannedCount int
	// SentCount — количество отправленных напоминаний
	SentCount int
	// PurgedCount — количество удалённых истёкших сессий
	PurgedCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReminderService — планировщик напоминаний.
type ReminderService struct {
	kv        kvstore.Store
	mailer    notify.Mailer
	templates *notify.Templates
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReminderService создаёт планировщик напоминаний.
func NewReminderService(
	kv kvstore.Store,
	mailer notify.Mailer,
	templates *notify.Templates,
	interval time.Duration,
	logger *slog.Logger,
) *ReminderService {
	return &ReminderService{
		kv:        kv,
		mailer:    mailer,
		templates: templates,
		interval:  interval,
		logger:    logger.With(slog.String("component", "reminder")),
		now:       time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (r *ReminderService) WithClock(now func() time.Time) *ReminderService {
	r.now = now
	return r
}

// Start запускает фоновую горутину планировщика.
func (r *ReminderService) Start(ctx context.Context) {
	remCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.run(remCtx)

	r.logger.Info("планировщик напоминаний запущен",
		slog.String("interval", r.interval.String()),
	)
}

// Stop останавливает фоновый процесс планировщика.
func (r *ReminderService) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Info("планировщик напоминаний остановлен")
}

// run — основной цикл фоновой горутины.
func (r *ReminderService) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход планировщика.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (r *ReminderService) RunOnce(ctx context.Context) *ReminderResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &ReminderResult{}
	now := r.now().UTC()

	keys, err := r.kv.List(ctx, kvstore.PrefixSession)
	if err != nil {
		r.logger.Error("reminder: ошибка листинга сессий",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	result.ScannedCount = len(keys)
	for _, key := range keys {
		if err := r.processSession(ctx, key, now, result); err != nil {
			r.logger.Error("reminder: ошибка обработки сессии",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			result.Errors++
		}
	}

	result.Duration = time.Since(start)

	reminderRunsTotal.Inc()
	remindersSentTotal.Add(float64(result.SentCount))
	reminderSessionsPurgedTotal.Add(float64(result.PurgedCount))

	r.logger.Info("проход напоминаний завершён",
		slog.Int("scanned", result.ScannedCount),
		slog.Int("sent", result.SentCount),
		slog.Int("purged", result.PurgedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// processSession обрабатывает одну запись session/.
func (r *ReminderService) processSession(ctx context.Context, key string, now time.Time, result *ReminderResult) error {
	data, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		// истекла между листингом и чтением
		return nil
	}

	var session model.ReminderSession
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	if session.IsExpired(now) {
		if err := r.kv.Delete(ctx, key); err != nil {
			return err
		}
		result.PurgedCount++
		return nil
	}

	if session.RemindersSent >= MaxReminders {
		return nil
	}
	if !session.LastReminderAt.IsZero() && now.Sub(session.LastReminderAt) < reminderGate {
		return nil
	}

	sessionID := strings.TrimPrefix(key, kvstore.PrefixSession)
	msg := r.templates.Reminder(sessionID, &session, session.DaysRemaining(now))
	if err := r.mailer.Send(ctx, msg); err != nil {
		return err
	}

	session.RemindersSent++
	session.LastReminderAt = now

	// остаток исходного TTL: напоминание не продлевает сессию
	remaining := session.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return nil
	}
	updated, err := json.Marshal(&session)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, key, updated, remaining); err != nil {
		return err
	}

	result.SentCount++
	r.logger.Debug("напоминание отправлено",
		slog.String("session_id", sessionID),
		slog.Int("reminders_sent", session.RemindersSent),
	)

	return nil
}

// fulfillment.go — ядро конвейера доставки заказов.
//
// Конвейер: сохранение дизайна → checkout у платёжного процессора →
// уведомление об оплате → упаковка → durable store → письмо со ссылкой.
// Уведомления приходят at-least-once: вся обработка идемпотентна по
// download-индексу. Ephemeral-записи могут истечь в любой момент —
// каждая операция трактует их отсутствие как штатное состояние.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/lifecycle"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/notify"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/packager"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/payment"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/kvstore"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/packagestore"
)

// Времена жизни записей конвейера.
const (
	// SessionTTL — срок хранения сохранённого дизайна.
	SessionTTL = 3 * 24 * time.Hour
	// PendingTTL — окно ожидания оплаты checkout-сессии.
	PendingTTL = time.Hour
	// PackageTTL — срок доступности доставленного пакета.
	PackageTTL = 3 * 24 * time.Hour
)

// Параметры checkout-позиции.
const (
	productName = "Website Download + Lifetime Hosting"
	amountCents = 5000
	currency    = "usd"
)

// Ключи metadata-копии артефакта у процессора.
const (
	metaBusinessName = "businessName"
	metaEmail        = "email"
	metaSiteHTML     = "siteHTML"
	metaWantHosting  = "wantHosting"
)

// Ошибки конвейера.
var (
	// ErrSessionNotFound — сохранённая сессия отсутствует или истекла.
	ErrSessionNotFound = fmt.Errorf("сохранённая сессия не найдена")
	// ErrPaymentIncomplete — сессия процессора не оплачена.
	ErrPaymentIncomplete = fmt.Errorf("оплата не завершена")
	// ErrMalformedArtifact — артефакт не подлежит упаковке.
	ErrMalformedArtifact = fmt.Errorf("артефакт не подлежит упаковке")
)

// Prometheus метрики конвейера
var (
	deliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_deliveries_total",
		Help: "Общее количество выполненных доставок",
	})

	duplicateNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_duplicate_notifications_total",
		Help: "Количество повторных уведомлений, погашенных идемпотентностью",
	})

	rejectedNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_rejected_notifications_total",
		Help: "Количество уведомлений, отклонённых проверкой подписи",
	})

	degradedRecoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_degraded_recoveries_total",
		Help: "Количество доставок, восстановленных из metadata процессора",
	})

	emailFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_email_failures_total",
		Help: "Количество сбоев best-effort отправки писем",
	})
)

// CheckoutHandle — результат создания checkout-сессии.
type CheckoutHandle struct {
	// PaymentSessionID — идентификатор сессии процессора
	PaymentSessionID string `json:"payment_session_id"`
	// CheckoutURL — URL страницы оплаты
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutRequest — вход операции StartCheckout: либо артефакт
// напрямую, либо идентификатор сохранённой сессии.
type CheckoutRequest struct {
	Artifact  *model.DesignArtifact
	SessionID string
}

// Fulfillment — сервис конвейера доставки.
type Fulfillment struct {
	kv        kvstore.Store
	packages  packagestore.Store
	processor payment.Processor
	keys      *payment.SigningKeyCache
	mailer    notify.Mailer
	templates *notify.Templates
	logger    *slog.Logger

	siteURL   string
	tolerance time.Duration
	now       func() time.Time
}

// NewFulfillment создаёт сервис конвейера.
func NewFulfillment(
	kv kvstore.Store,
	packages packagestore.Store,
	processor payment.Processor,
	keys *payment.SigningKeyCache,
	mailer notify.Mailer,
	templates *notify.Templates,
	siteURL string,
	logger *slog.Logger,
) *Fulfillment {
	return &Fulfillment{
		kv:        kv,
		packages:  packages,
		processor: processor,
		keys:      keys,
		mailer:    mailer,
		templates: templates,
		siteURL:   siteURL,
		tolerance: payment.DefaultTolerance,
		logger:    logger.With(slog.String("component", "fulfillment")),
		now:       time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (f *Fulfillment) WithClock(now func() time.Time) *Fulfillment {
	f.now = now
	return f
}

// Save сохраняет дизайн-артефакт и заводит сессию напоминаний.
// Повторное сохранение создаёт новую независимую сессию; повторное
// письмо-подтверждение допустимо.
func (f *Fulfillment) Save(ctx context.Context, artifact *model.DesignArtifact) (string, error) {
	if err := artifact.Validate(); err != nil {
		return "", fmt.Errorf("валидация артефакта: %w", err)
	}

	now := f.now().UTC()
	session := &model.ReminderSession{
		SessionID: uuid.NewString(),
		Artifact:  *artifact,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("сериализация сессии: %w", err)
	}
	if err := f.kv.Put(ctx, kvstore.SessionKey(session.SessionID), data, SessionTTL); err != nil {
		return "", fmt.Errorf("запись сессии: %w", err)
	}

	f.logger.Info("дизайн сохранён",
		slog.String("session_id", session.SessionID),
		slog.String("business_name", artifact.BusinessName),
	)

	f.sendBestEffort(ctx, f.templates.Confirmation(session.SessionID, artifact))

	return session.SessionID, nil
}

// StartCheckout создаёт checkout-сессию у процессора и запись
// PendingCheckout с полным артефактом. Сохранённая сессия при этом
// расходуется (single-use): напоминания по ней прекращаются.
func (f *Fulfillment) StartCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutHandle, error) {
	artifact := req.Artifact
	if artifact == nil {
		if req.SessionID == "" {
			return nil, fmt.Errorf("%w: не указан ни артефакт, ни сессия", ErrSessionNotFound)
		}
		session, err := f.loadSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		artifact = &session.Artifact
	}

	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("валидация артефакта: %w", err)
	}

	checkout, err := f.processor.CreateSession(ctx, &payment.CreateSessionRequest{
		ProductName:   productName,
		Description:   fmt.Sprintf("For %s", artifact.BusinessName),
		AmountCents:   amountCents,
		Currency:      currency,
		CustomerEmail: artifact.Email,
		SuccessURL:    f.siteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     f.siteURL,
		Metadata: map[string]string{
			metaBusinessName: artifact.BusinessName,
			metaEmail:        artifact.Email,
			metaWantHosting:  fmt.Sprintf("%t", artifact.WantHosting),
			metaSiteHTML:     artifact.HTMLContent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание checkout-сессии: %w", err)
	}

	now := f.now().UTC()
	pending := &model.PendingCheckout{
		PaymentSessionID: checkout.ID,
		Artifact:         *artifact,
		FileNameHint:     packager.FileName(artifact.BusinessName, checkout.ID, now),
		CreatedAt:        now,
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("сериализация pending-записи: %w", err)
	}
	if err := f.kv.Put(ctx, kvstore.PendingKey(checkout.ID), data, PendingTTL); err != nil {
		return nil, fmt.Errorf("запись pending: %w", err)
	}

	// сохранённая сессия расходуется после успешного создания checkout
	if req.Artifact == nil {
		if err := f.kv.Delete(ctx, kvstore.SessionKey(req.SessionID)); err != nil {
			f.logger.Warn("не удалось удалить израсходованную сессию",
				slog.String("session_id", req.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	f.logger.Info("checkout создан",
		slog.String("payment_session_id", checkout.ID),
		slog.String("business_name", artifact.BusinessName),
	)

	return &CheckoutHandle{PaymentSessionID: checkout.ID, CheckoutURL: checkout.URL}, nil
}

// HandleNotification обрабатывает уведомление процессора об оплате.
// Невалидная подпись отклоняет уведомление без изменения состояния.
// Повторные уведомления по уже доставленному заказу гасятся
// идемпотентным guard-ом по download-индексу.
func (f *Fulfillment) HandleNotification(ctx context.Context, body []byte, signature string) error {
	secrets, err := f.keys.Secrets(ctx)
	if err != nil {
		return fmt.Errorf("секреты подписи недоступны: %w", err)
	}

	n, err := payment.VerifyNotification(body, signature, secrets, f.tolerance, f.now())
	if err != nil {
		rejectedNotificationsTotal.Inc()
		f.logger.Warn("уведомление отклонено",
			slog.String("error", err.Error()),
		)
		return err
	}

	if n.Type != payment.EventCheckoutCompleted {
		f.logger.Debug("уведомление пропущено",
			slog.String("type", n.Type),
		)
		return nil
	}

	return f.fulfill(ctx, &n.Data.Object)
}

// Reconcile выполняет ручную сверку заказа: состояние запрашивается у
// процессора напрямую, затем доставка проходит тем же идемпотентным
// путём, что и по уведомлению.
func (f *Fulfillment) Reconcile(ctx context.Context, paymentSessionID string) (*model.PackageRef, error) {
	session, err := f.processor.GetSession(ctx, paymentSessionID)
	if err != nil {
		return nil, fmt.Errorf("запрос сессии у процессора: %w", err)
	}
	if session.PaymentStatus != payment.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: статус %q", ErrPaymentIncomplete, session.PaymentStatus)
	}

	if err := f.fulfill(ctx, session); err != nil {
		return nil, err
	}

	return f.ResolveDownload(ctx, paymentSessionID)
}

// fulfill — общий путь доставки для уведомления и ручной сверки.
func (f *Fulfillment) fulfill(ctx context.Context, session *payment.CheckoutSession) error {
	sid := session.ID

	// идемпотентный guard: заказ уже доставлен
	if _, found, err := f.kv.Get(ctx, kvstore.DownloadKey(sid)); err != nil {
		return fmt.Errorf("чтение download-индекса: %w", err)
	} else if found {
		duplicateNotificationsTotal.Inc()
		f.logger.Info("повторное уведомление погашено",
			slog.String("payment_session_id", sid),
		)
		return nil
	}

	artifact, fileName, createdAt, recovered, err := f.resolveArtifact(ctx, session)
	if err != nil {
		return err
	}

	data, err := packager.Build(artifact)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedArtifact, err.Error())
	}
	if fileName == "" {
		fileName = packager.FileName(artifact.BusinessName, sid, createdAt)
	}

	now := f.now().UTC()
	meta := &model.PackageMetadata{
		Email:            artifact.Email,
		BusinessName:     artifact.BusinessName,
		ExpiresAt:        now.Add(PackageTTL),
		PaymentSessionID: sid,
		ContentType:      packager.ContentType,
		Size:             int64(len(data)),
		Checksum:         packager.Checksum(data),
		CreatedAt:        now,
		Recovered:        recovered,
		WantHosting:      artifact.WantHosting,
	}
	if err := f.packages.Put(ctx, fileName, data, meta); err != nil {
		return fmt.Errorf("запись пакета: %w", err)
	}

	if err := f.kv.Put(ctx, kvstore.DownloadKey(sid), []byte(fileName), PackageTTL); err != nil {
		return fmt.Errorf("запись download-индекса: %w", err)
	}

	if err := f.kv.Delete(ctx, kvstore.PendingKey(sid)); err != nil {
		f.logger.Warn("не удалось удалить pending-запись",
			slog.String("payment_session_id", sid),
			slog.String("error", err.Error()),
		)
	}

	deliveriesTotal.Inc()
	f.logger.Info("заказ доставлен",
		slog.String("payment_session_id", sid),
		slog.String("file_name", fileName),
		slog.Bool("recovered", recovered),
	)

	// письма best-effort: их сбой не откатывает доставку
	f.sendBestEffort(ctx, f.templates.Delivered(artifact.Email, artifact.BusinessName, fileName, artifact.WantHosting))
	f.sendBestEffort(ctx, f.templates.OpsDelivered(sid, artifact.BusinessName, artifact.Email, fileName, artifact.WantHosting, recovered))

	return nil
}

// resolveArtifact восстанавливает артефакт для доставки:
// полный — из pending-записи, иначе деградированный — из усечённой
// metadata-копии процессора.
func (f *Fulfillment) resolveArtifact(ctx context.Context, session *payment.CheckoutSession) (artifact *model.DesignArtifact, fileName string, createdAt time.Time, recovered bool, err error) {
	data, found, err := f.kv.Get(ctx, kvstore.PendingKey(session.ID))
	if err != nil {
		return nil, "", time.Time{}, false, fmt.Errorf("чтение pending-записи: %w", err)
	}
	if found {
		var pending model.PendingCheckout
		if err := json.Unmarshal(data, &pending); err != nil {
			return nil, "", time.Time{}, false, fmt.Errorf("десериализация pending-записи: %w", err)
		}
		return &pending.Artifact, pending.FileNameHint, pending.CreatedAt, false, nil
	}

	// pending истёк: собираем что есть из metadata процессора
	email := session.Metadata[metaEmail]
	if email == "" {
		email = session.CustomerEmail
	}
	artifact = &model.DesignArtifact{
		BusinessName: session.Metadata[metaBusinessName],
		Email:        email,
		HTMLContent:  session.Metadata[metaSiteHTML],
		WantHosting:  session.Metadata[metaWantHosting] == "true",
	}

	createdAt = f.now().UTC()
	if session.Created > 0 {
		createdAt = time.Unix(session.Created, 0).UTC()
	}

	degradedRecoveriesTotal.Inc()
	f.logger.Warn("pending-запись недоступна, деградированное восстановление из metadata",
		slog.String("payment_session_id", session.ID),
		slog.Int("html_length", len(artifact.HTMLContent)),
	)

	return artifact, "", createdAt, true, nil
}

// ResolveDownload возвращает ссылку на пакет по платёжной сессии.
// Отсутствие и истечение пакета — не ошибка: возвращается nil
// (expired-link семантика).
func (f *Fulfillment) ResolveDownload(ctx context.Context, paymentSessionID string) (*model.PackageRef, error) {
	now := f.now().UTC()

	data, found, err := f.kv.Get(ctx, kvstore.DownloadKey(paymentSessionID))
	if err != nil {
		return nil, fmt.Errorf("чтение download-индекса: %w", err)
	}
	if found {
		fileName := string(data)
		meta, ok, err := f.packages.Head(ctx, fileName)
		if err != nil {
			return nil, fmt.Errorf("чтение метаданных пакета: %w", err)
		}
		if !ok || meta.IsExpired(now) {
			return nil, nil
		}
		return packageRef(fileName, meta), nil
	}

	// индекс истёк раньше пакета: fallback-скан по метаданным
	entry, err := packagestore.FindBySession(ctx, f.packages, paymentSessionID)
	if err != nil {
		return nil, fmt.Errorf("поиск пакета по сессии: %w", err)
	}
	if entry == nil || entry.Metadata.IsExpired(now) {
		return nil, nil
	}

	// восстанавливаем индекс на остаток жизни пакета
	if remaining := entry.Metadata.ExpiresAt.Sub(now); remaining > 0 {
		if err := f.kv.Put(ctx, kvstore.DownloadKey(paymentSessionID), []byte(entry.Name), remaining); err != nil {
			f.logger.Warn("не удалось восстановить download-индекс",
				slog.String("payment_session_id", paymentSessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	return packageRef(entry.Name, entry.Metadata), nil
}

// FetchPackage возвращает blob пакета для отдачи клиенту.
// Истёкший пакет трактуется как отсутствующий.
func (f *Fulfillment) FetchPackage(ctx context.Context, fileName string) ([]byte, *model.PackageMetadata, bool, error) {
	data, meta, found, err := f.packages.Get(ctx, fileName)
	if err != nil {
		return nil, nil, false, fmt.Errorf("чтение пакета: %w", err)
	}
	if !found || meta.IsExpired(f.now().UTC()) {
		return nil, nil, false, nil
	}
	return data, meta, true, nil
}

// State вычисляет состояние заказа из наличия записей конвейера.
// Идентификатор может быть как сохранённой сессией, так и платёжной.
func (f *Fulfillment) State(ctx context.Context, id string) (*lifecycle.Resolution, error) {
	var records lifecycle.Records

	if _, found, err := f.kv.Get(ctx, kvstore.SessionKey(id)); err != nil {
		return nil, fmt.Errorf("чтение сессии: %w", err)
	} else {
		records.HasSession = found
	}

	if _, found, err := f.kv.Get(ctx, kvstore.PendingKey(id)); err != nil {
		return nil, fmt.Errorf("чтение pending-записи: %w", err)
	} else {
		records.HasPending = found
	}

	now := f.now().UTC()
	data, found, err := f.kv.Get(ctx, kvstore.DownloadKey(id))
	if err != nil {
		return nil, fmt.Errorf("чтение download-индекса: %w", err)
	}
	if found {
		records.HasIndex = true
		meta, ok, err := f.packages.Head(ctx, string(data))
		if err != nil {
			return nil, fmt.Errorf("чтение метаданных пакета: %w", err)
		}
		records.HasPackage = ok && !meta.IsExpired(now)
	} else {
		entry, err := packagestore.FindBySession(ctx, f.packages, id)
		if err != nil {
			return nil, fmt.Errorf("поиск пакета по сессии: %w", err)
		}
		records.HasPackage = entry != nil && !entry.Metadata.IsExpired(now)
	}

	res := lifecycle.Resolve(records)
	return &res, nil
}

// loadSession читает сохранённую сессию напоминаний.
func (f *Fulfillment) loadSession(ctx context.Context, sessionID string) (*model.ReminderSession, error) {
	data, found, err := f.kv.Get(ctx, kvstore.SessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("чтение сессии: %w", err)
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	var session model.ReminderSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("десериализация сессии: %w", err)
	}
	return &session, nil
}

// sendBestEffort отправляет письмо, логируя сбой вместо возврата ошибки.
func (f *Fulfillment) sendBestEffort(ctx context.Context, msg *notify.Message) {
	if err := f.mailer.Send(ctx, msg); err != nil {
		emailFailuresTotal.Inc()
		f.logger.Error("сбой отправки письма",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
	}
}

// packageRef строит ссылку на пакет из метаданных.
func packageRef(fileName string, meta *model.PackageMetadata) *model.PackageRef {
	return &model.PackageRef{
		FileName:     fileName,
		BusinessName: meta.BusinessName,
		ExpiresAt:    meta.ExpiresAt,
		Recovered:    meta.Recovered,
	}
}

// Точка входа Fulfillment Module — модуля доставки заказанных сайтов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/handlers"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/api/middleware"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/config"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/notify"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/payment"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/server"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/service"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/kvstore"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/packagestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Fulfillment Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("kv_backend", cfg.KVBackend),
		slog.String("package_backend", cfg.PackageBackend),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Ephemeral-хранилище (сессии, pending, download-индекс)
	var kv kvstore.Store
	switch cfg.KVBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			logger.Error("Redis недоступен",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", pingErr.Error()),
			)
			os.Exit(1)
		}
		kv = kvstore.NewRedisStore(client, cfg.RedisKeyPrefix)
		logger.Info("Ephemeral-хранилище: Redis", slog.String("addr", cfg.RedisAddr))
	case "memory":
		kv = kvstore.NewMemoryStore()
		logger.Warn("Ephemeral-хранилище: in-memory, данные не переживут рестарт")
	}

	// 2. Durable-хранилище пакетов
	var packages packagestore.Store
	switch cfg.PackageBackend {
	case "file":
		packages, err = packagestore.NewFileStore(cfg.DataDir)
		if err != nil {
			logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Хранилище пакетов: файловое", slog.String("data_dir", cfg.DataDir))
	case "s3":
		packages, err = packagestore.NewS3Store(ctx, packagestore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("Ошибка инициализации S3Store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Хранилище пакетов: S3", slog.String("bucket", cfg.S3Bucket))
	}

	// 3. Внешние клиенты
	processor := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentSecretKey, nil, logger)
	keys := payment.NewSigningKeyCache(payment.StaticSecrets(cfg.WebhookSecrets...), cfg.SigningKeyTTL)
	mailer := notify.NewResendClient(cfg.EmailAPIURL, cfg.EmailAPIKey, nil, logger)
	templates := notify.NewTemplates(notify.Branding{
		From:         cfg.EmailFrom,
		SiteURL:      cfg.SiteURL,
		SupportEmail: cfg.SupportEmail,
		OpsEmail:     cfg.OpsEmail,
	})

	// 4. Сервис конвейера доставки
	fulfillment := service.NewFulfillment(kv, packages, processor, keys, mailer, templates, cfg.SiteURL, logger)

	// 5. Фоновые службы
	sweepSvc := service.NewSweepService(packages, cfg.SweepInterval, logger)
	sweepSvc.Start(ctx)
	defer sweepSvc.Stop()

	reminderSvc := service.NewReminderService(kv, mailer, templates, cfg.ReminderInterval, logger)
	reminderSvc.Start(ctx)
	defer reminderSvc.Stop()

	// topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		InstanceID:    cfg.InstanceID,
		Group:         cfg.DephealthGroup,
		PaymentAPIURL: cfg.PaymentAPIURL,
		EmailAPIURL:   cfg.EmailAPIURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
		}
	}

	// 6. JWT middleware (опционально — без JWKS URL API анонимен,
	// maintenance-операции закрыты)
	var auth *middleware.JWTAuth
	if cfg.JWKSURL != "" {
		auth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSURL,
			CACertPath:      cfg.CACertPath,
			TLSSkipVerify:   cfg.TLSSkipVerify,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("FM_JWKS_URL не задан, аутентификация выключена")
	}

	// 7. Handlers и HTTP-сервер
	healthHandler := handlers.NewHealthHandler(kv, packages)
	apiHandler := handlers.NewAPIHandler(fulfillment, sweepSvc, reminderSvc, healthHandler, auth, logger)

	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Fulfillment Module остановлен")
}

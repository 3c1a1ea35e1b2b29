// Пакет config — загрузка и валидация конфигурации Fulfillment Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Fulfillment Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 30s)
	ShutdownTimeout time.Duration

	// --- Ephemeral-хранилище (сессии, pending, download-индекс) ---

	// Бэкенд ephemeral-хранилища (redis, memory)
	KVBackend string
	// Адрес Redis (host:port)
	RedisAddr string
	// Пароль Redis (опционально)
	RedisPassword string
	// Номер БД Redis
	RedisDB int
	// Префикс ключей в Redis
	RedisKeyPrefix string

	// --- Durable-хранилище пакетов ---

	// Бэкенд хранилища пакетов (file, s3)
	PackageBackend string
	// Каталог данных файлового бэкенда
	DataDir string
	// Endpoint S3-совместимого хранилища
	S3Endpoint string
	// Регион S3
	S3Region string
	// Bucket для пакетов
	S3Bucket string
	// Ключи доступа S3
	S3AccessKey string
	S3SecretKey string

	// --- Платёжный процессор ---

	// Базовый URL API процессора
	PaymentAPIURL string
	// Секретный ключ API процессора
	PaymentSecretKey string
	// Ключи подписи уведомлений (несколько — при ротации)
	WebhookSecrets []string
	// TTL кэша ключей подписи
	SigningKeyTTL time.Duration
	// Базовый URL площадки (редиректы checkout, ссылки в письмах)
	SiteURL string

	// --- Email API ---

	// Базовый URL email API
	EmailAPIURL string
	// API-ключ email API
	EmailAPIKey string
	// Адрес отправителя писем
	EmailFrom string
	// Адрес поддержки (подпись писем)
	SupportEmail string
	// Адрес операционных уведомлений о доставках
	OpsEmail string

	// --- Фоновые службы ---

	// Интервал очистки просроченных пакетов
	SweepInterval time.Duration
	// Интервал прохода планировщика напоминаний
	ReminderInterval time.Duration

	// --- JWT / JWKS ---

	// URL JWKS endpoint (пусто — аутентификация выключена)
	JWKSURL string
	// Путь к CA-сертификату для JWKS (опционально)
	CACertPath string
	// Пропускать проверку TLS-сертификатов
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Dephealth ---

	// Имя вершины графа зависимостей
	InstanceID string
	// Группа в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FM_PORT: %w", err)
	}

	// FM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("FM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}

	// FM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("FM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("FM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// FM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 30s)
	cfg.ShutdownTimeout, err = getEnvDuration("FM_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Ephemeral-хранилище ---

	// FM_KV_BACKEND — бэкенд ephemeral-хранилища (по умолчанию redis).
	// memory — только для локальной разработки и тестов.
	cfg.KVBackend = getEnvDefault("FM_KV_BACKEND", "redis")
	if cfg.KVBackend != "redis" && cfg.KVBackend != "memory" {
		return nil, fmt.Errorf("FM_KV_BACKEND: недопустимый бэкенд %q, допустимые: redis, memory", cfg.KVBackend)
	}

	if cfg.KVBackend == "redis" {
		// FM_REDIS_ADDR — адрес Redis (обязателен для бэкенда redis)
		cfg.RedisAddr, err = getEnvRequired("FM_REDIS_ADDR")
		if err != nil {
			return nil, err
		}
		cfg.RedisPassword = getEnvDefault("FM_REDIS_PASSWORD", "")
		cfg.RedisDB, err = getEnvInt("FM_REDIS_DB", 0)
		if err != nil {
			return nil, fmt.Errorf("FM_REDIS_DB: %w", err)
		}
		cfg.RedisKeyPrefix = getEnvDefault("FM_REDIS_KEY_PREFIX", "fm")
	}

	// --- Durable-хранилище пакетов ---

	// FM_PACKAGE_BACKEND — бэкенд хранилища пакетов (по умолчанию file)
	cfg.PackageBackend = getEnvDefault("FM_PACKAGE_BACKEND", "file")
	switch cfg.PackageBackend {
	case "file":
		// FM_DATA_DIR — каталог данных (по умолчанию /data/packages)
		cfg.DataDir = getEnvDefault("FM_DATA_DIR", "/data/packages")
	case "s3":
		cfg.S3Endpoint = getEnvDefault("FM_S3_ENDPOINT", "")
		cfg.S3Region = getEnvDefault("FM_S3_REGION", "us-east-1")
		cfg.S3Bucket, err = getEnvRequired("FM_S3_BUCKET")
		if err != nil {
			return nil, err
		}
		cfg.S3AccessKey, err = getEnvRequired("FM_S3_ACCESS_KEY")
		if err != nil {
			return nil, err
		}
		cfg.S3SecretKey, err = getEnvRequired("FM_S3_SECRET_KEY")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FM_PACKAGE_BACKEND: недопустимый бэкенд %q, допустимые: file, s3", cfg.PackageBackend)
	}

	// --- Платёжный процессор ---

	// FM_PAYMENT_API_URL — базовый URL API процессора
	cfg.PaymentAPIURL, err = getEnvRequired("FM_PAYMENT_API_URL")
	if err != nil {
		return nil, err
	}

	// FM_PAYMENT_SECRET_KEY — секретный ключ API процессора
	cfg.PaymentSecretKey, err = getEnvRequired("FM_PAYMENT_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// FM_WEBHOOK_SECRETS — ключи подписи уведомлений через запятую.
	// Несколько ключей — штатная ситуация при ротации.
	secretsRaw, err := getEnvRequired("FM_WEBHOOK_SECRETS")
	if err != nil {
		return nil, err
	}
	for _, s := range strings.Split(secretsRaw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.WebhookSecrets = append(cfg.WebhookSecrets, s)
		}
	}
	if len(cfg.WebhookSecrets) == 0 {
		return nil, fmt.Errorf("FM_WEBHOOK_SECRETS: список ключей пуст")
	}

	// FM_SIGNING_KEY_TTL — TTL кэша ключей подписи (по умолчанию 10m)
	cfg.SigningKeyTTL, err = getEnvDuration("FM_SIGNING_KEY_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_SIGNING_KEY_TTL: %w", err)
	}

	// FM_SITE_URL — базовый URL площадки
	cfg.SiteURL, err = getEnvRequired("FM_SITE_URL")
	if err != nil {
		return nil, err
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	// --- Email API ---

	cfg.EmailAPIURL = getEnvDefault("FM_EMAIL_API_URL", "https://api.resend.com")
	cfg.EmailAPIKey, err = getEnvRequired("FM_EMAIL_API_KEY")
	if err != nil {
		return nil, err
	}
	cfg.EmailFrom = getEnvDefault("FM_EMAIL_FROM", "DSGN LABS <noreply@dsgnlabs.com>")
	cfg.SupportEmail = getEnvDefault("FM_SUPPORT_EMAIL", "support@dsgnlabs.com")
	cfg.OpsEmail = getEnvDefault("FM_OPS_EMAIL", "ops@dsgnlabs.com")

	// --- Фоновые службы ---

	// FM_SWEEP_INTERVAL — интервал очистки пакетов (по умолчанию 24h)
	cfg.SweepInterval, err = getEnvDuration("FM_SWEEP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FM_SWEEP_INTERVAL: %w", err)
	}

	// FM_REMINDER_INTERVAL — интервал прохода напоминаний (по умолчанию 1h)
	cfg.ReminderInterval, err = getEnvDuration("FM_REMINDER_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FM_REMINDER_INTERVAL: %w", err)
	}

	// --- JWT / JWKS ---

	// FM_JWKS_URL — пусто означает, что аутентификация выключена
	// (maintenance-операции при этом недоступны)
	cfg.JWKSURL = getEnvDefault("FM_JWKS_URL", "")
	cfg.CACertPath = getEnvDefault("FM_CA_CERT_PATH", "")
	cfg.TLSSkipVerify, err = getEnvBool("FM_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("FM_TLS_SKIP_VERIFY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("FM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("FM_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("FM_JWT_LEEWAY", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_JWT_LEEWAY: %w", err)
	}

	// --- Dephealth ---

	hostname, _ := os.Hostname()
	cfg.InstanceID = getEnvDefault("FM_INSTANCE_ID", hostname)
	cfg.DephealthGroup = getEnvDefault("FM_DEPHEALTH_GROUP", "sitebuilder")
	cfg.DephealthCheckInterval, err = getEnvDuration("FM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

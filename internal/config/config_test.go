package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

// setEnvVars устанавливает переменные окружения для теста и возвращает
// функцию очистки. Всегда вызывать defer cleanup().
func setEnvVars(t *testing.T, vars map[string]string) func() {
	t.Helper()

	// Сохраняем оригинальные значения
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
	}

	// Устанавливаем новые
	for k, v := range vars {
		os.Setenv(k, v)
	}

	return func() {
		for k := range vars {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// clearAllFMEnvVars очищает все переменные окружения FM_* для чистого теста.
func clearAllFMEnvVars(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"FM_PORT", "FM_LOG_LEVEL", "FM_LOG_FORMAT",
		"FM_HTTP_READ_TIMEOUT", "FM_HTTP_WRITE_TIMEOUT", "FM_HTTP_IDLE_TIMEOUT",
		"FM_SHUTDOWN_TIMEOUT",
		"FM_KV_BACKEND", "FM_REDIS_ADDR", "FM_REDIS_PASSWORD", "FM_REDIS_DB",
		"FM_REDIS_KEY_PREFIX",
		"FM_PACKAGE_BACKEND", "FM_DATA_DIR",
		"FM_S3_ENDPOINT", "FM_S3_REGION", "FM_S3_BUCKET",
		"FM_S3_ACCESS_KEY", "FM_S3_SECRET_KEY",
		"FM_PAYMENT_API_URL", "FM_PAYMENT_SECRET_KEY",
		"FM_WEBHOOK_SECRETS", "FM_SIGNING_KEY_TTL", "FM_SITE_URL",
		"FM_EMAIL_API_URL", "FM_EMAIL_API_KEY", "FM_EMAIL_FROM",
		"FM_SUPPORT_EMAIL", "FM_OPS_EMAIL",
		"FM_SWEEP_INTERVAL", "FM_REMINDER_INTERVAL",
		"FM_JWKS_URL", "FM_CA_CERT_PATH", "FM_TLS_SKIP_VERIFY",
		"FM_JWKS_CLIENT_TIMEOUT", "FM_JWKS_REFRESH_INTERVAL", "FM_JWT_LEEWAY",
		"FM_INSTANCE_ID", "FM_DEPHEALTH_GROUP", "FM_DEPHEALTH_CHECK_INTERVAL",
	}
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// requiredEnvVars возвращает минимальный набор обязательных переменных.
func requiredEnvVars() map[string]string {
	return map[string]string{
		"FM_REDIS_ADDR":         "redis:6379",
		"FM_PAYMENT_API_URL":    "https://api.payments.example.com",
		"FM_PAYMENT_SECRET_KEY": "sk_test_secret",
		"FM_WEBHOOK_SECRETS":    "whsec_one",
		"FM_SITE_URL":           "https://builder.example.com",
		"FM_EMAIL_API_KEY":      "re_test_key",
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, requiredEnvVars())
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8040 {
		t.Errorf("Port: ожидалось 8040, получено %d", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.HTTPReadTimeout != 30*time.Second {
		t.Errorf("HTTPReadTimeout: ожидалось 30s, получено %v", cfg.HTTPReadTimeout)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 30s, получено %v", cfg.ShutdownTimeout)
	}
	if cfg.KVBackend != "redis" {
		t.Errorf("KVBackend: ожидалось 'redis', получено %q", cfg.KVBackend)
	}
	if cfg.RedisKeyPrefix != "fm" {
		t.Errorf("RedisKeyPrefix: ожидалось 'fm', получено %q", cfg.RedisKeyPrefix)
	}
	if cfg.PackageBackend != "file" {
		t.Errorf("PackageBackend: ожидалось 'file', получено %q", cfg.PackageBackend)
	}
	if cfg.DataDir != "/data/packages" {
		t.Errorf("DataDir: ожидалось '/data/packages', получено %q", cfg.DataDir)
	}
	if cfg.SigningKeyTTL != 10*time.Minute {
		t.Errorf("SigningKeyTTL: ожидалось 10m, получено %v", cfg.SigningKeyTTL)
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Errorf("SweepInterval: ожидалось 24h, получено %v", cfg.SweepInterval)
	}
	if cfg.ReminderInterval != time.Hour {
		t.Errorf("ReminderInterval: ожидалось 1h, получено %v", cfg.ReminderInterval)
	}
	if cfg.JWKSURL != "" {
		t.Errorf("JWKSURL: ожидалась пустая строка, получено %q", cfg.JWKSURL)
	}
	if cfg.JWTLeeway != time.Minute {
		t.Errorf("JWTLeeway: ожидалось 1m, получено %v", cfg.JWTLeeway)
	}
	if cfg.DephealthCheckInterval != 30*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 30s, получено %v", cfg.DephealthCheckInterval)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	delete(vars, "FM_PAYMENT_SECRET_KEY")
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Fatal("ожидалась ошибка при отсутствии FM_PAYMENT_SECRET_KEY")
	}
	if !strings.Contains(err.Error(), "FM_PAYMENT_SECRET_KEY") {
		t.Errorf("ошибка должна упоминать переменную: %v", err)
	}
}

func TestLoad_WebhookSecretsList(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["FM_WEBHOOK_SECRETS"] = "whsec_old, whsec_new ,"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if len(cfg.WebhookSecrets) != 2 {
		t.Fatalf("ожидалось 2 ключа, получено %d: %v", len(cfg.WebhookSecrets), cfg.WebhookSecrets)
	}
	if cfg.WebhookSecrets[0] != "whsec_old" || cfg.WebhookSecrets[1] != "whsec_new" {
		t.Errorf("неожиданные ключи: %v", cfg.WebhookSecrets)
	}
}

func TestLoad_MemoryBackendSkipsRedis(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	delete(vars, "FM_REDIS_ADDR")
	vars["FM_KV_BACKEND"] = "memory"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.KVBackend != "memory" {
		t.Errorf("KVBackend: ожидалось 'memory', получено %q", cfg.KVBackend)
	}
}

func TestLoad_S3BackendRequiresBucket(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["FM_PACKAGE_BACKEND"] = "s3"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Fatal("ожидалась ошибка при отсутствии FM_S3_BUCKET")
	}
	if !strings.Contains(err.Error(), "FM_S3_BUCKET") {
		t.Errorf("ошибка должна упоминать переменную: %v", err)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["FM_LOG_LEVEL"] = "verbose"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Fatal("ожидалась ошибка при недопустимом уровне логирования")
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["FM_KV_BACKEND"] = "etcd"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Fatal("ожидалась ошибка при недопустимом бэкенде")
	}
}

func TestLoad_SiteURLTrimsSlash(t *testing.T) {
	cleanup := clearAllFMEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["FM_SITE_URL"] = "https://builder.example.com/"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.SiteURL != "https://builder.example.com" {
		t.Errorf("SiteURL: ожидалось без trailing slash, получено %q", cfg.SiteURL)
	}
}

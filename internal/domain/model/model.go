// Пакет model — доменные модели Fulfillment Module.
// Записи конвейера доставки: артефакт дизайна, сессия напоминаний,
// ожидающий checkout и метаданные доставленного пакета.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Лимиты входных данных (совпадают с валидацией веб-слоя продукта).
const (
	// MaxEmailLength — максимальная длина email-адреса.
	MaxEmailLength = 254
	// MinBusinessNameLength — минимальная длина названия бизнеса.
	MinBusinessNameLength = 2
	// MaxBusinessNameLength — максимальная длина названия бизнеса.
	MaxBusinessNameLength = 100
	// MaxHTMLSize — максимальный размер HTML-контента (500 КБ).
	MaxHTMLSize = 500 * 1024
)

// emailRe — грубая проверка формата email (как в веб-слое).
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// DesignArtifact — сгенерированный сайт вместе с данными владельца.
// Неизменяем после упаковки. HTMLContent может быть неполным (без
// закрывающих тегов), если прошёл через lossy-канал metadata процессора —
// упаковщик обязан отремонтировать его перед сохранением.
type DesignArtifact struct {
	// BusinessName — название бизнеса владельца
	BusinessName string `json:"business_name"`
	// Email — контактный email владельца
	Email string `json:"email"`
	// HTMLContent — HTML сгенерированного сайта
	HTMLContent string `json:"html_content"`
	// WantHosting — владелец выбрал бесплатный хостинг
	WantHosting bool `json:"want_hosting"`
}

// Validate проверяет поля артефакта.
// Пустой HTMLContent здесь допустим: пустоту отклоняет упаковщик
// (MalformedArtifact), а не валидация входа.
func (a *DesignArtifact) Validate() error {
	if a.Email == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(a.Email) > MaxEmailLength {
		return fmt.Errorf("email длиннее %d символов", MaxEmailLength)
	}
	if !emailRe.MatchString(a.Email) {
		return fmt.Errorf("некорректный формат email")
	}

	name := strings.TrimSpace(a.BusinessName)
	if len(name) < MinBusinessNameLength || len(name) > MaxBusinessNameLength {
		return fmt.Errorf("название бизнеса должно быть от %d до %d символов",
			MinBusinessNameLength, MaxBusinessNameLength)
	}

	if len(a.HTMLContent) > MaxHTMLSize {
		return fmt.Errorf("HTML превышает лимит %d байт", MaxHTMLSize)
	}

	return nil
}

// ReminderSession — сохранённый дизайн, ожидающий конверсии в оплату.
// Создаётся операцией Save, мутируется только планировщиком напоминаний,
// удаляется при истечении TTL или конверсии в PendingCheckout.
// Отсутствие записи — валидное терминальное состояние, не ошибка.
type ReminderSession struct {
	// SessionID — идентификатор сохранённой сессии
	SessionID string `json:"session_id"`
	// Artifact — сохранённый артефакт
	Artifact DesignArtifact `json:"artifact"`
	// CreatedAt — время сохранения (UTC)
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt — время истечения (created_at + 3 суток)
	ExpiresAt time.Time `json:"expires_at"`
	// RemindersSent — количество отправленных напоминаний (0..3)
	RemindersSent int `json:"reminders_sent"`
	// LastReminderAt — время последнего напоминания (zero — не было)
	LastReminderAt time.Time `json:"last_reminder_at"`
}

// IsExpired проверяет, истекла ли сессия.
func (s *ReminderSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// DaysRemaining возвращает округлённое вверх число суток до истечения.
func (s *ReminderSession) DaysRemaining(now time.Time) int {
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// PendingCheckout — артефакт, переданный платёжному процессору.
// Ключ — идентификатор checkout-сессии процессора. Короткий TTL (1 час):
// если уведомление о завершении не пришло в это окно, fulfillment
// восстанавливает деградированный артефакт из metadata процессора.
type PendingCheckout struct {
	// PaymentSessionID — идентификатор сессии платёжного процессора
	PaymentSessionID string `json:"payment_session_id"`
	// Artifact — полный артефакт (в отличие от усечённой metadata-копии)
	Artifact DesignArtifact `json:"artifact"`
	// FileNameHint — заранее вычисленное базовое имя файла пакета
	FileNameHint string `json:"file_name_hint"`
	// CreatedAt — время создания checkout (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// PackageMetadata — метаданные доставленного пакета.
// Хранятся вместе с blob-ом в durable store и являются единственным
// источником истины для sweep после истечения ephemeral-индекса.
type PackageMetadata struct {
	// Email — email владельца
	Email string `json:"email"`
	// BusinessName — название бизнеса
	BusinessName string `json:"business_name"`
	// ExpiresAt — когда пакет подлежит удалению sweep-ом
	ExpiresAt time.Time `json:"expires_at"`
	// PaymentSessionID — сессия процессора, породившая доставку
	PaymentSessionID string `json:"payment_session_id"`
	// ContentType — MIME-тип blob-а
	ContentType string `json:"content_type"`
	// Size — размер blob-а в байтах
	Size int64 `json:"size"`
	// Checksum — SHA-256 содержимого
	Checksum string `json:"checksum"`
	// CreatedAt — время доставки (UTC)
	CreatedAt time.Time `json:"created_at"`
	// Recovered — пакет собран из усечённой metadata-копии процессора
	// (деградированное восстановление, контент мог быть неполным)
	Recovered bool `json:"recovered,omitempty"`
	// WantHosting — владелец выбрал бесплатный хостинг
	WantHosting bool `json:"want_hosting,omitempty"`
}

// IsExpired проверяет, истёк ли пакет.
func (m *PackageMetadata) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// PackageRef — ссылка на доставленный пакет для скачивания.
type PackageRef struct {
	// FileName — имя файла пакета в durable store
	FileName string `json:"file_name"`
	// BusinessName — название бизнеса из метаданных
	BusinessName string `json:"business_name"`
	// ExpiresAt — когда ссылка перестанет действовать
	ExpiresAt time.Time `json:"expires_at"`
	// Recovered — пакет получен деградированным восстановлением
	Recovered bool `json:"recovered,omitempty"`
}

// SanitizeName приводит строку к безопасному для имени файла виду:
// всё, кроме латинских букв и цифр, заменяется на подчёркивание.
// Пример: "Acme Co" → "Acme_Co".
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "site"
	}
	return b.String()
}

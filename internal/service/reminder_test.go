package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/notify"
	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/storage/kvstore"
)

type reminderEnv struct {
	kv       *kvstore.MemoryStore
	mailer   *fakeMailer
	reminder *ReminderService
	now      time.Time
	clock    *time.Time
}

func newReminderEnv(t *testing.T) *reminderEnv {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	kv := kvstore.NewMemoryStoreWithClock(func() time.Time { return *clock })
	mailer := &fakeMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	templates := notify.NewTemplates(notify.Branding{
		From:    "Test <noreply@example.com>",
		SiteURL: "https://builder.example.com",
	})

	reminder := NewReminderService(kv, mailer, templates, time.Hour, logger).
		WithClock(func() time.Time { return *clock })

	return &reminderEnv{kv: kv, mailer: mailer, reminder: reminder, now: now, clock: clock}
}

func (e *reminderEnv) putSession(t *testing.T, sessionID string, session *model.ReminderSession) {
	t.Helper()
	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("сериализация сессии: %v", err)
	}
	ttl := session.ExpiresAt.Sub(*e.clock)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := e.kv.Put(context.Background(), kvstore.SessionKey(sessionID), data, ttl); err != nil {
		t.Fatalf("запись сессии: %v", err)
	}
}

func (e *reminderEnv) session(created time.Time) *model.ReminderSession {
	return &model.ReminderSession{
		SessionID: "sess-1",
		Artifact: model.DesignArtifact{
			BusinessName: "Acme Co",
			Email:        "client@example.com",
			HTMLContent:  "<html></html>",
		},
		CreatedAt: created,
		ExpiresAt: created.Add(SessionTTL),
	}
}

func (e *reminderEnv) loadSession(t *testing.T, sessionID string) *model.ReminderSession {
	t.Helper()
	data, found, err := e.kv.Get(context.Background(), kvstore.SessionKey(sessionID))
	if err != nil || !found {
		t.Fatalf("сессия недоступна: found=%t err=%v", found, err)
	}
	var s model.ReminderSession
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("десериализация сессии: %v", err)
	}
	return &s
}

func TestReminderSendsFirst(t *testing.T) {
	env := newReminderEnv(t)
	env.putSession(t, "sess-1", env.session(env.now))

	result := env.reminder.RunOnce(context.Background())
	if result.SentCount != 1 {
		t.Fatalf("отправлено напоминаний: хотели 1, получили %d", result.SentCount)
	}

	msgs := env.mailer.sent()
	if !strings.Contains(msgs[0].Subject, "Don't Forget") {
		t.Errorf("тема первого напоминания: %q", msgs[0].Subject)
	}

	updated := env.loadSession(t, "sess-1")
	if updated.RemindersSent != 1 {
		t.Errorf("RemindersSent: хотели 1, получили %d", updated.RemindersSent)
	}
	if !updated.LastReminderAt.Equal(env.now) {
		t.Errorf("LastReminderAt: хотели %v, получили %v", env.now, updated.LastReminderAt)
	}
}

func TestReminderGate(t *testing.T) {
	env := newReminderEnv(t)
	env.putSession(t, "sess-1", env.session(env.now))
	ctx := context.Background()

	env.reminder.RunOnce(ctx)

	// спустя час гейт ещё закрыт
	*env.clock = env.clock.Add(time.Hour)
	result := env.reminder.RunOnce(ctx)
	if result.SentCount != 0 {
		t.Errorf("напоминание раньше гейта: %d", result.SentCount)
	}

	// спустя 23 часа от последнего — гейт открыт
	*env.clock = env.clock.Add(22*time.Hour + time.Minute)
	result = env.reminder.RunOnce(ctx)
	if result.SentCount != 1 {
		t.Errorf("напоминание после гейта не отправлено: %d", result.SentCount)
	}
}

func TestReminderCapAtThree(t *testing.T) {
	env := newReminderEnv(t)
	env.putSession(t, "sess-1", env.session(env.now))
	ctx := context.Background()

	sent := 0
	// гоняем планировщик каждые сутки до конца жизни сессии
	for i := 0; i < 5; i++ {
		result := env.reminder.RunOnce(ctx)
		sent += result.SentCount
		*env.clock = env.clock.Add(23*time.Hour + 30*time.Minute)
	}

	if sent > MaxReminders {
		t.Errorf("отправлено напоминаний: %d, лимит %d", sent, MaxReminders)
	}
}

func TestReminderEscalationOverDays(t *testing.T) {
	env := newReminderEnv(t)
	env.putSession(t, "sess-1", env.session(env.now))
	ctx := context.Background()

	env.reminder.RunOnce(ctx)
	*env.clock = env.clock.Add(24 * time.Hour)
	env.reminder.RunOnce(ctx)
	*env.clock = env.clock.Add(24 * time.Hour)
	env.reminder.RunOnce(ctx)

	msgs := env.mailer.sent()
	if len(msgs) != 3 {
		t.Fatalf("писем: хотели 3, получили %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Subject, "Don't Forget") {
		t.Errorf("день 3: %q", msgs[0].Subject)
	}
	if !strings.Contains(msgs[1].Subject, "Only 2 Days Left") {
		t.Errorf("день 2: %q", msgs[1].Subject)
	}
	if !strings.Contains(msgs[2].Subject, "Final Day") {
		t.Errorf("день 1: %q", msgs[2].Subject)
	}
}

func TestReminderPreservesTTL(t *testing.T) {
	env := newReminderEnv(t)
	session := env.session(env.now)
	env.putSession(t, "sess-1", session)
	ctx := context.Background()

	// напоминание на второй день жизни сессии
	*env.clock = env.clock.Add(24 * time.Hour)
	if result := env.reminder.RunOnce(ctx); result.SentCount != 1 {
		t.Fatalf("напоминание не отправлено")
	}

	// остаток TTL не продлён: ~2 суток, не 3
	remaining, ok := env.kv.TTL(kvstore.SessionKey("sess-1"))
	if !ok {
		t.Fatal("сессия пропала после напоминания")
	}
	want := session.ExpiresAt.Sub(*env.clock)
	if remaining > want {
		t.Errorf("TTL продлён напоминанием: остаток %v, максимум %v", remaining, want)
	}
}

func TestReminderPurgesExpired(t *testing.T) {
	env := newReminderEnv(t)

	// сессия с истёкшим ExpiresAt, но ещё видимая в хранилище
	session := env.session(env.now.Add(-SessionTTL - time.Hour))
	data, _ := json.Marshal(session)
	if err := env.kv.Put(context.Background(), kvstore.SessionKey("sess-old"), data, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	result := env.reminder.RunOnce(context.Background())
	if result.PurgedCount != 1 {
		t.Errorf("удалено истёкших сессий: хотели 1, получили %d", result.PurgedCount)
	}
	if result.SentCount != 0 {
		t.Error("истёкшая сессия получила напоминание")
	}
	if len(env.mailer.sent()) != 0 {
		t.Error("письмо отправлено по истёкшей сессии")
	}
}

func TestReminderSkipsMaxedOut(t *testing.T) {
	env := newReminderEnv(t)
	session := env.session(env.now)
	session.RemindersSent = MaxReminders
	session.LastReminderAt = env.now.Add(-48 * time.Hour)
	env.putSession(t, "sess-1", session)

	result := env.reminder.RunOnce(context.Background())
	if result.SentCount != 0 {
		t.Errorf("сессия с исчерпанным лимитом получила напоминание: %d", result.SentCount)
	}
}

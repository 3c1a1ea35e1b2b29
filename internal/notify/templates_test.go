package notify

import (
	"strings"
	"testing"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

func testTemplates() *Templates {
	return NewTemplates(Branding{
		From:         "DSGN LABS <noreply@example.com>",
		SiteURL:      "https://builder.example.com",
		SupportEmail: "support@example.com",
		OpsEmail:     "ops@example.com",
	})
}

func testArtifact() *model.DesignArtifact {
	return &model.DesignArtifact{
		BusinessName: "Acme Co",
		Email:        "client@example.com",
		HTMLContent:  "<html></html>",
	}
}

func TestConfirmation(t *testing.T) {
	msg := testTemplates().Confirmation("sess-1", testArtifact())

	if msg.To[0] != "client@example.com" {
		t.Errorf("адресат: хотели client@example.com, получили %q", msg.To[0])
	}
	if !strings.Contains(msg.Subject, "Acme Co") {
		t.Errorf("тема без имени бизнеса: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "https://builder.example.com/checkout/sess-1") {
		t.Error("письмо без ссылки на checkout")
	}
	if !strings.Contains(msg.HTML, "Self-hosting instructions") {
		t.Error("заказ без хостинга должен получить self-host строку")
	}
}

func TestDeliveredVariants(t *testing.T) {
	tpl := testTemplates()

	hosted := tpl.Delivered("client@example.com", "Acme Co", "Acme_Co-20260301-120000-AB12CD.zip", true)
	if !strings.Contains(hosted.HTML, "Free Lifetime Hosting") {
		t.Error("hosting-вариант без блока хостинга")
	}
	if !strings.Contains(hosted.HTML, "/download/Acme_Co-20260301-120000-AB12CD.zip") {
		t.Error("письмо без ссылки на пакет")
	}

	selfHost := tpl.Delivered("client@example.com", "Acme Co", "a.zip", false)
	if strings.Contains(selfHost.HTML, "Free Lifetime Hosting") {
		t.Error("self-host вариант содержит блок хостинга")
	}
	if !strings.Contains(selfHost.HTML, "README.txt") {
		t.Error("self-host вариант без упоминания README.txt")
	}
}

func TestReminderEscalation(t *testing.T) {
	tpl := testTemplates()
	session := &model.ReminderSession{Artifact: *testArtifact()}

	tests := []struct {
		days        int
		wantSubject string
		wantFinal   bool
	}{
		{3, "Don't Forget", false},
		{2, "Only 2 Days Left", false},
		{1, "Final Day", true},
	}

	for _, tt := range tests {
		msg := tpl.Reminder("sess-1", session, tt.days)
		if !strings.Contains(msg.Subject, tt.wantSubject) {
			t.Errorf("день %d: тема %q не содержит %q", tt.days, msg.Subject, tt.wantSubject)
		}
		hasFinal := strings.Contains(msg.HTML, "Final Warning")
		if hasFinal != tt.wantFinal {
			t.Errorf("день %d: финальное предупреждение=%t, хотели %t", tt.days, hasFinal, tt.wantFinal)
		}
		if !strings.Contains(msg.HTML, "/checkout/sess-1") {
			t.Errorf("день %d: письмо без ссылки на checkout", tt.days)
		}
	}
}

func TestOpsDelivered(t *testing.T) {
	tpl := testTemplates()

	normal := tpl.OpsDelivered("cs_test_1", "Acme Co", "client@example.com", "a.zip", true, false)
	if normal.To[0] != "ops@example.com" {
		t.Errorf("операционное письмо не на ops-адрес: %q", normal.To[0])
	}
	if strings.Contains(normal.Subject, "degraded") {
		t.Error("обычная доставка помечена как деградированная")
	}
	if !strings.Contains(normal.HTML, "Hosting setup is due") {
		t.Error("hosting-заказ без напоминания о настройке хостинга")
	}

	recovered := tpl.OpsDelivered("cs_test_1", "Acme Co", "client@example.com", "a.zip", false, true)
	if !strings.Contains(recovered.Subject, "degraded recovery") {
		t.Errorf("деградированная доставка без пометки в теме: %q", recovered.Subject)
	}
	if !strings.Contains(recovered.HTML, "may be truncated") {
		t.Error("письмо о деградированном восстановлении без предупреждения об усечении")
	}
}

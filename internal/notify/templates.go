package notify

import (
	"fmt"
	"strings"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// Branding — реквизиты отправителя для шаблонов писем.
type Branding struct {
	// From — адрес отправителя, например "DSGN LABS <noreply@example.com>"
	From string
	// SiteURL — базовый URL площадки (для ссылок в письмах)
	SiteURL string
	// SupportEmail — адрес поддержки
	SupportEmail string
	// OpsEmail — адрес операционных уведомлений
	OpsEmail string
}

// Templates строит письма пайплайна доставки.
// Письма клиентам — на английском (язык площадки).
type Templates struct {
	b Branding
}

// NewTemplates создаёт построитель писем.
func NewTemplates(b Branding) *Templates {
	return &Templates{b: b}
}

// Confirmation — письмо-подтверждение после сохранения дизайна.
// Повторная отправка при повторном сохранении допустима.
func (t *Templates) Confirmation(sessionID string, artifact *model.DesignArtifact) *Message {
	var b strings.Builder
	b.WriteString("<h2>Your website looks amazing!</h2>\n")
	fmt.Fprintf(&b, "<p>Great job creating your custom %s website.</p>\n", artifact.BusinessName)
	b.WriteString("<p><strong>Your website is saved and ready to download!</strong></p>\n")
	fmt.Fprintf(&b, "<p><a href=\"%s/checkout/%s\">Download My Website ($50)</a></p>\n", t.b.SiteURL, sessionID)
	b.WriteString("<p><strong>What you'll get:</strong></p>\n<ul>\n")
	b.WriteString("<li>Complete website files (HTML, CSS, JavaScript)</li>\n")
	b.WriteString("<li>Immediate download access</li>\n")
	fmt.Fprintf(&b, "<li>%s</li>\n", hostingLine(artifact.WantHosting))
	b.WriteString("<li>Full ownership of all code and design</li>\n</ul>\n")
	b.WriteString("<p><strong>Note:</strong> Your website is saved for 3 days. After that, you'll need to rebuild it.</p>\n")
	t.footer(&b)

	return &Message{
		From:    t.b.From,
		To:      []string{artifact.Email},
		Subject: fmt.Sprintf("Your %s Website is Ready!", artifact.BusinessName),
		HTML:    b.String(),
	}
}

// Delivered — письмо со ссылкой на скачивание после оплаты.
// Вариант с хостингом дополнительно описывает его подключение.
func (t *Templates) Delivered(email, businessName, fileName string, wantHosting bool) *Message {
	downloadURL := fmt.Sprintf("%s/download/%s", t.b.SiteURL, fileName)

	var b strings.Builder
	b.WriteString("<h2>Congratulations! Your website is ready.</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Download your website files:</strong><br>\n<a href=\"%s\">Download Website Files</a></p>\n", downloadURL)
	b.WriteString("<p><strong>Important:</strong> Your download link will expire in 3 days. Please download your files soon!</p>\n")
	if wantHosting {
		b.WriteString("<p><strong>Free Lifetime Hosting - What's Next?</strong></p>\n<ul>\n")
		b.WriteString("<li>Your website files are ready to download now</li>\n")
		b.WriteString("<li>We're setting up your free lifetime hosting</li>\n")
		b.WriteString("<li><strong>Within 3 business days</strong>, we'll send you another email with your live website URL</li>\n")
		b.WriteString("<li>No monthly fees, no renewal costs - hosting is free for life</li>\n</ul>\n")
	} else {
		b.WriteString("<p><strong>What's Included:</strong></p>\n<ul>\n")
		b.WriteString("<li>Complete website files (HTML, CSS, JavaScript)</li>\n")
		b.WriteString("<li>README.txt with deployment instructions</li>\n")
		b.WriteString("<li>Ready to upload to any hosting service</li>\n</ul>\n")
		b.WriteString("<p>Detailed instructions are included in the README.txt file inside your download.</p>\n")
	}
	fmt.Fprintf(&b, "<p><strong>Need your files after 3 days?</strong><br>\nNo problem! Just reply to this email or contact %s.</p>\n", t.b.SupportEmail)
	t.footer(&b)

	return &Message{
		From:    t.b.From,
		To:      []string{email},
		Subject: fmt.Sprintf("Your %s Website is Ready!", businessName),
		HTML:    b.String(),
	}
}

// Reminder — напоминание о неоплаченном заказе.
// Тема и тон эскалируются по оставшимся дням; в финальный день
// добавляется предупреждение о безвозвратном удалении.
func (t *Templates) Reminder(sessionID string, session *model.ReminderSession, daysRemaining int) *Message {
	var subject, heading, urgency string
	switch {
	case daysRemaining >= 3:
		subject = fmt.Sprintf("Don't Forget Your %s Website!", session.Artifact.BusinessName)
		heading = "Your Website is Waiting!"
		urgency = "You have 3 days to complete your purchase."
	case daysRemaining == 2:
		subject = fmt.Sprintf("Only 2 Days Left for Your %s Website", session.Artifact.BusinessName)
		heading = "Time is Running Out!"
		urgency = "Only 2 days remaining to download your website."
	default:
		subject = fmt.Sprintf("Final Day: Your %s Website Expires Today!", session.Artifact.BusinessName)
		heading = "Last Chance!"
		urgency = "This is your final day to download your website before it expires."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n", heading)
	fmt.Fprintf(&b, "<p>You worked hard to create your custom %s website, and it looks amazing!</p>\n", session.Artifact.BusinessName)
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>\n", urgency)
	b.WriteString("<p>Your website is still saved and ready to download:</p>\n")
	fmt.Fprintf(&b, "<p><a href=\"%s/checkout/%s\">Download My Website ($50)</a></p>\n", t.b.SiteURL, sessionID)
	b.WriteString("<p><strong>What you'll get:</strong></p>\n<ul>\n")
	b.WriteString("<li>Complete website files (HTML, CSS, JavaScript)</li>\n")
	b.WriteString("<li>Immediate download access</li>\n")
	fmt.Fprintf(&b, "<li>%s</li>\n", hostingLine(session.Artifact.WantHosting))
	b.WriteString("<li>Full ownership of all code and design</li>\n</ul>\n")
	if daysRemaining <= 1 {
		b.WriteString("<p><strong>Final Warning:</strong> After today, your website will be permanently deleted and you'll need to rebuild it from scratch.</p>\n")
	}
	t.footer(&b)

	return &Message{
		From:    t.b.From,
		To:      []string{session.Artifact.Email},
		Subject: subject,
		HTML:    b.String(),
	}
}

// OpsDelivered — операционное письмо о выполненной доставке.
// При деградированном восстановлении артефакта письмо помечает заказ
// как требующий ручной проверки.
func (t *Templates) OpsDelivered(paymentSessionID, businessName, email, fileName string, wantHosting, recovered bool) *Message {
	var b strings.Builder
	b.WriteString("<h2>Order fulfilled</h2>\n<ul>\n")
	fmt.Fprintf(&b, "<li>Payment session: %s</li>\n", paymentSessionID)
	fmt.Fprintf(&b, "<li>Business: %s</li>\n", businessName)
	fmt.Fprintf(&b, "<li>Customer: %s</li>\n", email)
	fmt.Fprintf(&b, "<li>Package: %s</li>\n", fileName)
	fmt.Fprintf(&b, "<li>Hosting requested: %t</li>\n", wantHosting)
	b.WriteString("</ul>\n")
	if recovered {
		b.WriteString("<p><strong>ATTENTION:</strong> the design artifact was recovered from payment metadata and may be truncated. Verify the delivered package manually.</p>\n")
	}
	if wantHosting {
		b.WriteString("<p>Hosting setup is due within 3 business days.</p>\n")
	}

	subject := fmt.Sprintf("Order fulfilled: %s", businessName)
	if recovered {
		subject = fmt.Sprintf("Order fulfilled (degraded recovery): %s", businessName)
	}

	return &Message{
		From:    t.b.From,
		To:      []string{t.b.OpsEmail},
		Subject: subject,
		HTML:    b.String(),
	}
}

func hostingLine(wantHosting bool) string {
	if wantHosting {
		return "Free lifetime hosting (setup within 3 business days)"
	}
	return "Self-hosting instructions and support"
}

func (t *Templates) footer(b *strings.Builder) {
	fmt.Fprintf(b, "<p>Questions? Just reply to this email!</p>\n<p><a href=\"%s\">%s</a></p>\n",
		t.b.SiteURL, strings.TrimPrefix(strings.TrimPrefix(t.b.SiteURL, "https://"), "http://"))
}

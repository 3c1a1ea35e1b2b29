// Пакет packager — сборка пакета доставки из дизайн-артефакта.
//
// Пакет — zip-архив из index.html и README.txt с инструкциями по
// развёртыванию. Имя пакета детерминировано по платёжной сессии:
// повторная упаковка того же заказа даёт то же имя, дубль-записи
// в durable store схлопываются.
package packager

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// ErrEmptyArtifact возвращается при попытке упаковать артефакт
// без HTML-содержимого.
var ErrEmptyArtifact = fmt.Errorf("артефакт без HTML-содержимого")

// ContentType — MIME-тип собранного пакета.
const ContentType = "application/zip"

// FileName строит детерминированное имя пакета:
// <sanitizedBusinessName>-<createdAt UTC 20060102-150405>-<SUFFIX>.zip,
// где SUFFIX — первые 6 hex-символов SHA-256 от paymentSessionID в
// верхнем регистре. Имя зависит только от заказа, не от момента
// упаковки: повторная доставка по той же сессии даёт то же имя.
func FileName(businessName, paymentSessionID string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(paymentSessionID))
	suffix := strings.ToUpper(hex.EncodeToString(sum[:3]))
	return fmt.Sprintf("%s-%s-%s.zip",
		model.SanitizeName(businessName),
		createdAt.UTC().Format("20060102-150405"),
		suffix,
	)
}

// Build собирает zip-пакет из артефакта.
// HTML без закрывающего </html> дописывается до структурно закрытого
// документа. Единственная фатальная ситуация — пустой HTMLContent.
func Build(artifact *model.DesignArtifact) ([]byte, error) {
	if artifact == nil || artifact.HTMLContent == "" {
		return nil, ErrEmptyArtifact
	}

	html := artifact.HTMLContent
	if !strings.Contains(html, "</html>") {
		html += "\n</body>\n</html>"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	f, err := zw.Create("index.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания index.html в архиве: %w", err)
	}
	if _, err := f.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("ошибка записи index.html: %w", err)
	}

	f, err = zw.Create("README.txt")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания README.txt в архиве: %w", err)
	}
	if _, err := f.Write([]byte(readme(artifact))); err != nil {
		return nil, fmt.Errorf("ошибка записи README.txt: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия архива: %w", err)
	}

	return buf.Bytes(), nil
}

// Checksum возвращает SHA-256 содержимого пакета в hex.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readme генерирует README.txt с инструкциями по развёртыванию.
// Блок о хостинге включается только для заказов с WantHosting.
func readme(artifact *model.DesignArtifact) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Website for %s\n\n", artifact.BusinessName)
	b.WriteString("Your website is ready to deploy!\n\n")

	if artifact.WantHosting {
		b.WriteString("FREE LIFETIME HOSTING:\n")
		b.WriteString("Your website will be live within 3 business days. ")
		b.WriteString("We'll send you the URL via email once it's ready.\n\n")
	}

	b.WriteString("TO SELF-HOST:\n")
	b.WriteString("Your website can be deployed to any static hosting service:\n\n")
	b.WriteString("Option 1 - Cloudflare Pages (Recommended):\n")
	b.WriteString("1. Go to https://pages.cloudflare.com\n")
	b.WriteString("2. Create a new project\n")
	b.WriteString("3. Upload this folder\n")
	b.WriteString("4. Your site will be live in minutes!\n\n")
	b.WriteString("Option 2 - Other Hosting:\n")
	b.WriteString("- Netlify: Drag and drop to https://app.netlify.com/drop\n")
	b.WriteString("- Vercel: Use their CLI or web interface\n")
	b.WriteString("- GitHub Pages: Push to a repository\n")
	b.WriteString("- Any web host: Upload via FTP\n\n")
	b.WriteString("DOWNLOAD LINK EXPIRES:\n")
	b.WriteString("Your download link will be available for 3 days from payment date.\n")
	b.WriteString("After that, please contact support if you need the files again.\n")

	return b.String()
}

package packager

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("пакет не является валидным zip: %v", err)
	}

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("ошибка открытия %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ошибка чтения %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}
	return files
}

func TestBuildContents(t *testing.T) {
	artifact := &model.DesignArtifact{
		BusinessName: "Acme Co",
		Email:        "client@example.com",
		HTMLContent:  "<html><body><h1>Acme</h1></body></html>",
	}

	data, err := Build(artifact)
	if err != nil {
		t.Fatalf("Build вернул ошибку: %v", err)
	}

	files := readZip(t, data)
	if len(files) != 2 {
		t.Fatalf("файлов в пакете: хотели 2, получили %d", len(files))
	}
	if files["index.html"] != artifact.HTMLContent {
		t.Errorf("index.html изменился при упаковке полного документа")
	}
	if !strings.Contains(files["README.txt"], "Website for Acme Co") {
		t.Error("README.txt не содержит имени бизнеса")
	}
	if strings.Contains(files["README.txt"], "FREE LIFETIME HOSTING") {
		t.Error("README.txt содержит блок хостинга для заказа без хостинга")
	}
}

func TestBuildRepairsTruncatedHTML(t *testing.T) {
	artifact := &model.DesignArtifact{
		BusinessName: "Acme Co",
		HTMLContent:  "<html><body><h1>Acme</h1>",
	}

	data, err := Build(artifact)
	if err != nil {
		t.Fatalf("Build вернул ошибку: %v", err)
	}

	html := readZip(t, data)["index.html"]
	if !strings.HasSuffix(html, "\n</body>\n</html>") {
		t.Errorf("обрезанный HTML не дописан до закрытого документа: %q", html)
	}
	if !strings.Contains(html, "<h1>Acme</h1>") {
		t.Error("исходное содержимое потеряно при ремонте")
	}
}

func TestBuildHostingReadme(t *testing.T) {
	artifact := &model.DesignArtifact{
		BusinessName: "Acme Co",
		HTMLContent:  "<html></html>",
		WantHosting:  true,
	}

	data, err := Build(artifact)
	if err != nil {
		t.Fatalf("Build вернул ошибку: %v", err)
	}

	readme := readZip(t, data)["README.txt"]
	if !strings.Contains(readme, "FREE LIFETIME HOSTING") {
		t.Error("README.txt без блока хостинга для заказа с хостингом")
	}
}

func TestBuildEmptyArtifact(t *testing.T) {
	if _, err := Build(&model.DesignArtifact{BusinessName: "Acme"}); !errors.Is(err, ErrEmptyArtifact) {
		t.Errorf("пустой артефакт: хотели ErrEmptyArtifact, получили %v", err)
	}
	if _, err := Build(nil); !errors.Is(err, ErrEmptyArtifact) {
		t.Errorf("nil-артефакт: хотели ErrEmptyArtifact, получили %v", err)
	}
}

func TestBuildDeterministic(t *testing.T) {
	artifact := &model.DesignArtifact{
		BusinessName: "Acme Co",
		HTMLContent:  "<html><body></body></html>",
	}

	a, err := Build(artifact)
	if err != nil {
		t.Fatalf("первый Build: %v", err)
	}
	b, err := Build(artifact)
	if err != nil {
		t.Fatalf("второй Build: %v", err)
	}

	filesA, filesB := readZip(t, a), readZip(t, b)
	for name, content := range filesA {
		if filesB[name] != content {
			t.Errorf("содержимое %s отличается между сборками", name)
		}
	}
}

func TestFileName(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	name := FileName("Acme Co", "cs_test_a1b2c3", createdAt)
	if !strings.HasPrefix(name, "Acme_Co-20260301-123045-") {
		t.Errorf("префикс имени: получили %q", name)
	}
	if !strings.HasSuffix(name, ".zip") {
		t.Errorf("имя без расширения .zip: %q", name)
	}

	// детерминированность по сессии
	if again := FileName("Acme Co", "cs_test_a1b2c3", createdAt); again != name {
		t.Errorf("имя недетерминировано: %q != %q", again, name)
	}

	// другая сессия — другой суффикс
	other := FileName("Acme Co", "cs_test_other", createdAt)
	if other == name {
		t.Error("разные платёжные сессии дали одинаковое имя пакета")
	}

	// суффикс в верхнем регистре, 6 hex-символов
	parts := strings.Split(strings.TrimSuffix(name, ".zip"), "-")
	suffix := parts[len(parts)-1]
	if len(suffix) != 6 || suffix != strings.ToUpper(suffix) {
		t.Errorf("суффикс имени: хотели 6 hex-символов в верхнем регистре, получили %q", suffix)
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("data"))
	if len(a) != 64 {
		t.Errorf("длина checksum: хотели 64, получили %d", len(a))
	}
	if a != Checksum([]byte("data")) {
		t.Error("checksum недетерминирован")
	}
	if a == Checksum([]byte("other")) {
		t.Error("разные данные дали одинаковый checksum")
	}
}

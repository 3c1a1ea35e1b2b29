package packagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// AttrSuffix — суффикс файла метаданных рядом с пакетом.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (4 КБ).
// Ограничение гарантирует атомарность записи.
const maxAttrFileSize = 4096

// FileStore — durable-хранилище пакетов на локальном диске.
// Каждый пакет хранится как <name> плюс сопутствующий <name>.attr.json —
// единственный источник истины для метаданных. Все записи атомарны:
// temp → fsync → rename.
type FileStore struct {
	dataDir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore создаёт хранилище в указанной директории.
// Директория создаётся при необходимости.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// dataPath возвращает путь к файлу пакета.
// Имя проверяется на выход за пределы dataDir.
func (fs *FileStore) dataPath(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("недопустимое имя пакета: %q", name)
	}
	return filepath.Join(fs.dataDir, name), nil
}

// Put атомарно сохраняет blob и его attr.json.
// Сначала пишется blob, затем метаданные: пакет без attr.json при
// сбое обнаружит скан листинга, обратная ситуация невозможна.
func (fs *FileStore) Put(_ context.Context, name string, data []byte, meta *model.PackageMetadata) error {
	path, err := fs.dataPath(name)
	if err != nil {
		return err
	}

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("ошибка записи пакета %s: %w", name, err)
	}

	attrData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	if len(attrData) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(attrData), maxAttrFileSize)
	}
	if err := writeAtomic(path+AttrSuffix, attrData); err != nil {
		return fmt.Errorf("ошибка записи attr.json для %s: %w", name, err)
	}

	return nil
}

// Get возвращает blob и метаданные пакета.
func (fs *FileStore) Get(_ context.Context, name string) ([]byte, *model.PackageMetadata, bool, error) {
	path, err := fs.dataPath(name)
	if err != nil {
		return nil, nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("ошибка чтения пакета %s: %w", name, err)
	}

	meta, err := readAttr(path + AttrSuffix)
	if err != nil {
		return nil, nil, false, err
	}

	return data, meta, true, nil
}

// Head возвращает только метаданные пакета.
func (fs *FileStore) Head(_ context.Context, name string) (*model.PackageMetadata, bool, error) {
	path, err := fs.dataPath(name)
	if err != nil {
		return nil, false, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("ошибка stat пакета %s: %w", name, err)
	}

	meta, err := readAttr(path + AttrSuffix)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// Delete удаляет blob и его attr.json. Отсутствие — не ошибка.
// Сначала удаляется blob: осиротевший attr.json безвреден и будет
// удалён повторным вызовом, осиротевший blob — утечка места.
func (fs *FileStore) Delete(_ context.Context, name string) error {
	path, err := fs.dataPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления пакета %s: %w", name, err)
	}
	if err := os.Remove(path + AttrSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления attr.json для %s: %w", name, err)
	}
	return nil
}

// List сканирует директорию и возвращает все пакеты с метаданными.
// Пакеты без attr.json пропускаются с точки зрения листинга:
// без метаданных решение об их судьбе принять нельзя.
func (fs *FileStore) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", fs.dataDir, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasSuffix(de.Name(), AttrSuffix) || strings.HasSuffix(de.Name(), ".tmp") {
			continue
		}

		meta, err := readAttr(filepath.Join(fs.dataDir, de.Name())+AttrSuffix)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		entries = append(entries, Entry{Name: de.Name(), Metadata: meta})
	}

	return entries, nil
}

// writeAtomic записывает файл по паттерну temp → fsync → rename.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// readAttr читает и десериализует attr.json.
func readAttr(attrPath string) (*model.PackageMetadata, error) {
	data, err := os.ReadFile(attrPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", attrPath, err)
	}

	var meta model.PackageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", attrPath, err)
	}

	return &meta, nil
}

package packagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/arturkryukov/sitebuilder/fulfillment-module/internal/domain/model"
)

// Ключи пользовательских метаданных S3-объекта.
// S3 приводит ключи к нижнему регистру, поэтому сразу в нём.
const (
	metaKeyEmail            = "email"
	metaKeyBusinessName     = "business-name"
	metaKeyExpiresAt        = "expires-at"
	metaKeyPaymentSessionID = "payment-session-id"
	metaKeyChecksum         = "checksum"
	metaKeyCreatedAt        = "created-at"
	metaKeyRecovered        = "recovered"
	metaKeyWantHosting      = "want-hosting"
)

// S3Config — параметры подключения к S3-совместимому хранилищу
// (AWS S3, MinIO, Cloudflare R2).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store — durable-хранилище пакетов в S3-совместимом бакете.
// Метаданные пакета хранятся в пользовательских метаданных объекта:
// blob и его метаданные неразделимы, осиротевший attr невозможен.
type S3Store struct {
	client *s3.Client
	bucket string
}

var _ Store = (*S3Store)(nil)

// NewS3Store создаёт хранилище поверх S3-совместимого бакета.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put сохраняет blob с метаданными в пользовательских метаданных объекта.
func (s *S3Store) Put(ctx context.Context, name string, data []byte, meta *model.PackageMetadata) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(meta.ContentType),
		Metadata:    encodeMeta(meta),
	})
	if err != nil {
		return fmt.Errorf("ошибка записи пакета %s в S3: %w", name, err)
	}
	return nil
}

// Get возвращает blob и метаданные пакета.
func (s *S3Store) Get(ctx context.Context, name string) ([]byte, *model.PackageMetadata, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("ошибка чтения пакета %s из S3: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, false, fmt.Errorf("ошибка чтения тела пакета %s: %w", name, err)
	}

	meta := decodeMeta(out.Metadata, out.ContentType, int64(len(data)))
	return data, meta, true, nil
}

// Head возвращает только метаданные пакета.
func (s *S3Store) Head(ctx context.Context, name string) (*model.PackageMetadata, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ошибка head пакета %s в S3: %w", name, err)
	}

	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return decodeMeta(out.Metadata, out.ContentType, size), true, nil
}

// Delete удаляет объект. Отсутствие — не ошибка (S3 так и отвечает).
func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления пакета %s из S3: %w", name, err)
	}
	return nil
}

// List возвращает все пакеты бакета с метаданными.
// Метаданные добираются Head-запросом на каждый ключ: листинг
// используется редкими задачами (sweep, fallback-поиск).
func (s *S3Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка листинга бакета %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			meta, found, err := s.Head(ctx, *obj.Key)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			entries = append(entries, Entry{Name: *obj.Key, Metadata: meta})
		}
	}

	return entries, nil
}

// encodeMeta сериализует метаданные пакета в map для S3.
func encodeMeta(meta *model.PackageMetadata) map[string]string {
	m := map[string]string{
		metaKeyEmail:            meta.Email,
		metaKeyBusinessName:     meta.BusinessName,
		metaKeyPaymentSessionID: meta.PaymentSessionID,
		metaKeyChecksum:         meta.Checksum,
	}
	if !meta.ExpiresAt.IsZero() {
		m[metaKeyExpiresAt] = meta.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if !meta.CreatedAt.IsZero() {
		m[metaKeyCreatedAt] = meta.CreatedAt.UTC().Format(time.RFC3339)
	}
	if meta.Recovered {
		m[metaKeyRecovered] = "true"
	}
	if meta.WantHosting {
		m[metaKeyWantHosting] = "true"
	}
	return m
}

// decodeMeta восстанавливает метаданные пакета из map S3-объекта.
// Невалидные timestamp-ы трактуются как отсутствующие: пакет без
// expires-at не удаляется sweep-ом.
func decodeMeta(m map[string]string, contentType *string, size int64) *model.PackageMetadata {
	meta := &model.PackageMetadata{
		Email:            m[metaKeyEmail],
		BusinessName:     m[metaKeyBusinessName],
		PaymentSessionID: m[metaKeyPaymentSessionID],
		Checksum:         m[metaKeyChecksum],
		Recovered:        m[metaKeyRecovered] == "true",
		WantHosting:      m[metaKeyWantHosting] == "true",
		Size:             size,
	}
	if contentType != nil {
		meta.ContentType = *contentType
	}
	if ts, err := time.Parse(time.RFC3339, m[metaKeyExpiresAt]); err == nil {
		meta.ExpiresAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, m[metaKeyCreatedAt]); err == nil {
		meta.CreatedAt = ts
	}
	return meta
}

// isNotFound распознаёт ответы S3 об отсутствии объекта.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/finboard/finboard-api/internal/config"
)

// StorageService archives raw CSV import files to S3-compatible object
// storage (Tigris, MinIO, AWS). Archival is best effort: imports work
// with storage disabled.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService builds the archive client. Without a configured
// bucket it returns a disabled service whose methods no-op, so callers
// never branch on configuration.
func NewStorageService(cfg *config.Config, logger *slog.Logger) (*StorageService, error) {
	svc := &StorageService{logger: logger}
	if !cfg.StorageEnabled {
		logger.Info("import archival disabled, no storage bucket configured")
		return svc, nil
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.StorageAccessKey, cfg.StorageSecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// Path-style addressing keeps S3-compatible endpoints happy.
	svc.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})
	svc.bucket = cfg.StorageBucket
	svc.enabled = true

	logger.Info("import archival enabled", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)
	return svc, nil
}

// IsEnabled reports whether archives are actually being written.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// ArchiveImport stores the raw bytes of an uploaded CSV and returns
// the object key, or "" when storage is disabled.
func (s *StorageService) ArchiveImport(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if !s.enabled {
		return "", nil
	}

	key := path.Join("imports", userID, ulid.Make().String()+"-"+path.Base(filename))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("archive import: %w", err)
	}

	s.logger.Debug("import archived", "key", key, "bytes", len(data))
	return key, nil
}

// ImportDownloadURL returns a presigned GET URL for an archived import.
func (s *StorageService) ImportDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("storage is not configured")
	}

	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign import download: %w", err)
	}

	return req.URL, nil
}

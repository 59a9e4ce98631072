package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexttale/internal/config"
	"nexttale/shared/interfaces"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	uploadTimeout     = 30 * time.Second
	assetCacheControl = "public, max-age=31536000, immutable"
	maxAssetSizeBytes = 50 * 1024 * 1024
)

var _ interfaces.AssetStore = (*MinioAssetStore)(nil)

// MinioAssetStore keeps generated images in a MinIO/S3 bucket.
type MinioAssetStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinioAssetStore connects to the bucket in cfg, creating it when missing.
func NewMinioAssetStore(ctx context.Context, cfg config.MinIOConfig, logger *zap.Logger) (*MinioAssetStore, error) {
	if !cfg.Enabled() || cfg.SecretKey == "" {
		return nil, errors.New("minio is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("Created asset bucket", zap.String("bucket", cfg.Bucket))
	}

	publicURL := strings.TrimSpace(cfg.PublicBaseURL)
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &MinioAssetStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger.Named("MinioAssetStore"),
	}, nil
}

func (s *MinioAssetStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("asset is empty")
	}
	if len(data) > maxAssetSizeBytes {
		return "", fmt.Errorf("asset size %d exceeds %d bytes", len(data), maxAssetSizeBytes)
	}
	objectName = strings.TrimPrefix(objectName, "/")

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: assetCacheControl,
	})
	if err != nil {
		s.logger.Error("Failed to upload asset", zap.String("object", objectName), zap.Error(err))
		return "", fmt.Errorf("upload asset %s: %w", objectName, err)
	}

	url := s.PublicURL(objectName)
	s.logger.Debug("Asset uploaded", zap.String("object", objectName), zap.Int("size_bytes", len(data)))
	return url, nil
}

// PublicURL returns base/bucket/object.
func (s *MinioAssetStore) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, strings.TrimPrefix(objectName, "/"))
}

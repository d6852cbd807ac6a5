package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ninersracing/kbwiki/internal/config"
)

// maxPresign is the longest validity S3 accepts for a presigned URL.
const maxPresign = 7 * 24 * time.Hour

// MinIOStore keeps attachment blobs in a MinIO bucket.
type MinIOStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
	presignTTL time.Duration
}

// NewMinIOStore creates the client and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 || ttl > maxPresign {
		ttl = maxPresign
	}
	s := &MinIOStore{client: mc, bucket: cfg.Bucket, publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"), presignTTL: ttl}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Put uploads data under key with metadata stored as object user metadata.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  http.DetectContentType(data),
		UserMetadata: metadata,
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return s.url(ctx, key)
}

func (s *MinIOStore) url(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", key, err)
	}
	return presigned.String(), nil
}

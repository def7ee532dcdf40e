package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig holds Aliyun OSS credentials.
type OSSConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string
}

// OSSStore keeps attachments in an Aliyun OSS bucket.
type OSSStore struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	publicBase string
}

// NewOSSStore connects to the configured bucket.
func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: missing ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY/BUCKET")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("storage: oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: client.Bucket: %w", err)
	}

	return &OSSStore{
		bucket:     bucket,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: cfg.PublicBase,
	}, nil
}

// Save uploads r under a fresh object key.
func (s *OSSStore) Save(ctx context.Context, r io.Reader, name string) (string, error) {
	key := ObjectKey(uploadPrefix, name, time.Now())

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.bucket.PutObject(key, r,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("attachment"),
	); err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	return key, nil
}

// Delete removes an object from the bucket.
func (s *OSSStore) Delete(ctx context.Context, ref string) error {
	return s.bucket.DeleteObject(ref, oss.WithContext(ctx))
}

// URL returns the public URL for an object key.
func (s *OSSStore) URL(ref string) string {
	if ref == "" {
		return ""
	}
	if base := strings.TrimSpace(s.publicBase); base != "" {
		return strings.TrimRight(base, "/") + "/" + ref
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, end, ref)
}

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig wires an S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore persists metadata documents as JSON objects in an
// S3-compatible bucket. The bucket is created lazily on first use.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

// NewMinioStore validates the config and builds the client. No network call
// happens until the first Upload or Download.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("store: minio endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("store: minio access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("store: minio bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("store: init minio client: %w", err)
	}

	return &MinioStore{client: client, bucket: bucket, region: region}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Upload marshals doc and writes it under key, returning an s3:// URI.
func (s *MinioStore) Upload(ctx context.Context, key string, doc any) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("store: key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("store: ensure bucket: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("store: marshal %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("store: put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Download reads and unmarshals the object at key.
func (s *MinioStore) Download(ctx context.Context, key string, out any) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("store: ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

// UploadBytes writes a pre-rendered object, for non-JSON artifacts like the
// proof image.
func (s *MinioStore) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("store: key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("store: ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store: put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

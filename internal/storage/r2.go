package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config holds the configuration for Cloudflare R2 storage.
// R2 speaks the S3 API, so the same client works against any S3-compatible
// endpoint when Endpoint is set explicitly.
type R2Config struct {
	AccountID       string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	CustomDomain    string // Optional: public-URL domain in front of the bucket
	Endpoint        string // Optional: overrides the account-derived endpoint
}

// R2Storage wraps LocalStorage and adds R2 upload capability.
// It uses LocalStorage for temporary file operations and R2 for delivery.
type R2Storage struct {
	*LocalStorage
	client       *s3.Client
	bucket       string
	customDomain string
}

// NewR2Storage creates a new R2Storage instance.
// The tempDir parameter specifies where temporary files are stored.
func NewR2Storage(tempDir string, cfg R2Config) (*R2Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	// R2 ignores the region but the SDK requires one
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion("auto"),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		customDomain: cfg.CustomDomain,
	}, nil
}

// Upload pushes a local file to the bucket under key and returns its public URL.
func (s *R2Storage) Upload(ctx context.Context, key, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload to R2: %w", err)
	}

	return s.PublicURL(key), nil
}

// UploadEnabled reports true; R2Storage is always constructed with a bucket.
func (s *R2Storage) UploadEnabled() bool {
	return true
}

// PublicURL returns the public URL for an uploaded object, using the custom
// domain when configured and the R2 dev domain otherwise.
func (s *R2Storage) PublicURL(key string) string {
	if s.customDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.customDomain, key)
	}
	return fmt.Sprintf("https://%s.r2.dev/%s", s.bucket, key)
}

// Delete removes an object from the bucket.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from R2: %w", err)
	}
	return nil
}

package artifact

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig points at an S3-compatible store such as MinIO.
type BucketConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (c BucketConfig) Enabled() bool { return strings.TrimSpace(c.Endpoint) != "" }

// bucketAdmin is the part of the minio client used to create the bucket.
type bucketAdmin interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Bucket mirrors successful artifacts to object storage so they can be
// shared by presigned URL.
type Bucket struct {
	client *minio.Client
	admin  bucketAdmin
	bucket string
	region string
	prefix string

	mu    sync.Mutex
	ready bool
}

func NewBucket(cfg BucketConfig) (*Bucket, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("bucket endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("bucket access key and secret key are required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, fmt.Errorf("bucket name is required")
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
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &Bucket{
		client: client,
		admin:  client,
		bucket: name,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ensureBucket creates the bucket on first use. A failed attempt is retried
// on the next call.
func (b *Bucket) ensureBucket(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}
	exists, err := b.admin.BucketExists(ctx, b.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := b.admin.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
			return err
		}
		log.Printf("☁️ [ARTIFACT] Created bucket %s", b.bucket)
	}
	b.ready = true
	return nil
}

// objectKey maps a local artifact path to its key in the bucket.
func (b *Bucket) objectKey(path string) string {
	name := filepath.Base(path)
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

// Upload copies a local artifact into the bucket and returns its key.
func (b *Bucket) Upload(ctx context.Context, path string) (string, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	key := b.objectKey(path)
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := b.client.FPutObject(ctx, b.bucket, key, path, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	log.Printf("☁️ [ARTIFACT] Uploaded %s to %s/%s", path, b.bucket, key)
	return key, nil
}

// Remove deletes the mirrored copy of path. Missing objects are not errors.
func (b *Bucket) Remove(ctx context.Context, path string) error {
	if err := b.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	key := b.objectKey(path)
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for an artifact.
func (b *Bucket) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	u, err := b.client.PresignedGetObject(ctx, b.bucket, b.objectKey(path), expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Mirror returns a listener that uploads every successful iteration's
// artifact. Upload failures are logged only.
func (b *Bucket) Mirror() orchestrator.Listener {
	return func(e orchestrator.Event) {
		if e.Type != orchestrator.EventIteration || !e.Outcome.IsSuccess() || e.Outcome.OutputArtifactPath == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := b.Upload(ctx, e.Outcome.OutputArtifactPath); err != nil {
			log.Printf("⚠️ [ARTIFACT] Mirror upload failed: %v", err)
		}
	}
}

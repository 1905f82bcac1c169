// Package objectstore turns opaque storage keys into short-lived download URLs.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Expiry    time.Duration
}

// Presigner signs GET URLs for keys in one bucket.
type Presigner struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func New(cfg Config) (*Presigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object storage endpoint is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 15 * time.Minute
	}
	// a fixed region keeps presigning offline; minio-go would otherwise look it up
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return &Presigner{client: client, bucket: cfg.Bucket, expiry: cfg.Expiry}, nil
}

// PresignGet returns a download URL for key. Keys that already are http(s)
// URLs are returned unchanged.
func (p *Presigner) PresignGet(ctx context.Context, key string) (string, error) {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	bucket, object := p.bucket, strings.TrimPrefix(key, "/")
	if rest, ok := strings.CutPrefix(key, "s3://"); ok {
		bucket, object, ok = strings.Cut(rest, "/")
		if !ok || object == "" {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	if object == "" {
		return "", fmt.Errorf("empty object key")
	}

	u, err := p.client.PresignedGetObject(ctx, bucket, object, p.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, object, err)
	}
	return u.String(), nil
}

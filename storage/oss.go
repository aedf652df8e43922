package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type OSSConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// OSSBucket stores objects in a private Aliyun OSS bucket. Reads go through
// signed URLs.
type OSSBucket struct {
	bucket   *oss.Bucket
	endpoint string
	name     string
}

func NewOSSBucket(cfg OSSConfig, log zerolog.Logger) (*OSSBucket, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("missing OSS_ENDPOINT/OSS_ACCESS_KEY/OSS_SECRET_KEY/OSS_BUCKET")
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "oss.New")
	}
	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "client.Bucket")
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("object storage ready")
	return &OSSBucket{bucket: bkt, endpoint: cfg.Endpoint, name: cfg.Bucket}, nil
}

func (b *OSSBucket) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
		oss.ForbidOverWrite(true),
	}
	if err := b.bucket.PutObject(key, body, opts...); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}

func (b *OSSBucket) Delete(ctx context.Context, key string) error {
	err := b.bucket.DeleteObject(key, oss.WithContext(ctx))
	if err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (b *OSSBucket) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	signed, err := b.bucket.SignURL(key, oss.HTTPGet, int64(ttl.Seconds()), oss.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(err, "sign %s", key)
	}
	return signed, nil
}

// PublicURL is the unsigned virtual-host URL of key; it only works for
// objects in a public-read bucket.
func (b *OSSBucket) PublicURL(key string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(b.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", b.name, host, strings.TrimLeft(key, "/"))
}

func isNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}

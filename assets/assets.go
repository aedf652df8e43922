// Package assets ties uploaded files to the records that reference them and
// turns stored references into URLs a browser can load.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fm3d/apperr"
	"fm3d/models"
	"fm3d/storage"
)

const DefaultPlaceholder = "/images/placeholder.png"

// Key prefixes inside the bucket.
const (
	PrefixPosts = "posts"
	PrefixWorks = "works"
	PrefixUsers = "users"
	PrefixNews  = "news"
)

type Service struct {
	bucket      storage.Bucket
	signTTL     time.Duration
	placeholder string
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(bucket storage.Bucket, signTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		bucket:      bucket,
		signTTL:     signTTL,
		placeholder: DefaultPlaceholder,
		log:         log,
		now:         time.Now,
	}
}

// NewKey builds a collision resistant key: <prefix>/<unix-millis>-<random>.<ext>.
func (s *Service) NewKey(prefix, ext string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%d-%s.%s", prefix, s.now().UnixMilli(), random, ext)
}

// Store validates up and uploads it under a fresh key. Nothing is sent to
// the bucket when validation fails.
func (s *Service) Store(ctx context.Context, prefix string, up *Upload, limits Limits) (string, error) {
	if err := Validate(up, limits); err != nil {
		return "", err
	}
	key := s.NewKey(prefix, Extension(up))
	if err := s.bucket.Upload(ctx, key, bytes.NewReader(up.Data), up.ContentType); err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "Upload nije uspeo.")
	}
	return key, nil
}

// Attach uploads up and points ref at it. It returns the key ref referenced
// before, which the caller hands to Discard once the owning record is saved.
func (s *Service) Attach(ctx context.Context, ref *models.AssetRef, prefix string, up *Upload, limits Limits) (string, error) {
	key, err := s.Store(ctx, prefix, up, limits)
	if err != nil {
		return "", err
	}
	return replacePath(ref, key), nil
}

// AttachPath points ref at an object uploaded earlier through the upload
// endpoint and returns the superseded key.
func (s *Service) AttachPath(ref *models.AssetRef, key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, "://") {
		return "", apperr.Validation("Neispravna putanja fajla.")
	}
	return replacePath(ref, key), nil
}

// AttachExternal points ref at an absolute http(s) URL and returns the key of
// the stored object it no longer references.
func (s *Service) AttachExternal(ref *models.AssetRef, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation("Link mora biti apsolutna http(s) adresa.")
	}
	old := ref.Path
	ref.SetURL(u.String())
	return old, nil
}

// Detach clears ref and returns the key it pointed at.
func (s *Service) Detach(ref *models.AssetRef) string {
	old := ref.Path
	ref.Clear()
	return old
}

// Discard deletes keys, logging instead of failing. Cleanup of superseded
// objects never aborts the mutation that superseded them.
func (s *Service) Discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.bucket.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("best-effort delete of stored object failed")
		}
	}
}

// ResolveViewableURL returns a URL for ref a browser can load, the
// placeholder when there is nothing to show or signing failed.
func (s *Service) ResolveViewableURL(ctx context.Context, ref models.AssetRef) string {
	switch {
	case ref.Path != "":
		signed, err := s.bucket.SignURL(ctx, ref.Path, s.signTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("key", ref.Path).Msg("signing url failed")
			return s.placeholder
		}
		return signed
	case strings.HasPrefix(ref.URL, "http"):
		return ref.URL
	}
	return s.placeholder
}

// PublicURL is the unsigned URL of key. It only loads when the bucket is
// publicly readable.
func (s *Service) PublicURL(key string) string {
	return s.bucket.PublicURL(key)
}

func replacePath(ref *models.AssetRef, key string) string {
	old := ref.Path
	ref.SetPath(key)
	if old == key {
		return ""
	}
	return old
}

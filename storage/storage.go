// Package storage talks to the object store holding uploaded files.
package storage

import (
	"context"
	"io"
	"time"
)

// Bucket is the subset of an object store the site needs. Delete must treat
// a missing object as success.
type Bucket interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// Package cache keeps rendered public API responses on disk and drops them
// when the content behind them changes.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

type PageCache struct {
	dir    string
	maxAge time.Duration
	log    zerolog.Logger
}

func New(dir string, maxAge time.Duration, log zerolog.Logger) *PageCache {
	return &PageCache{dir: dir, maxAge: maxAge, log: log}
}

// Path returns the cache file for a request path.
func (p *PageCache) Path(key string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s.json", generateHash(key)))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func normalize(key string) string {
	if len(key) > 1 {
		key = strings.TrimRight(key, "/")
	}
	return key
}

func (p *PageCache) Write(key string, body []byte) error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(p.Path(normalize(key)), body, 0644)
}

// Read returns the cached body for key if present and not expired.
func (p *PageCache) Read(key string) ([]byte, bool) {
	path := p.Path(normalize(key))
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > p.maxAge {
		return nil, false
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Invalidate removes the entries for paths. Failures are logged; a stale
// entry expires on its own after maxAge.
func (p *PageCache) Invalidate(paths ...string) {
	for _, key := range paths {
		err := os.Remove(p.Path(normalize(key)))
		if err != nil && !os.IsNotExist(err) {
			p.log.Warn().Err(err).Str("path", key).Msg("cache invalidation failed")
		}
	}
}

// Clear removes every cached entry.
func (p *PageCache) Clear() error {
	return os.RemoveAll(p.dir)
}

// Sweep removes entries older than maxAge.
func (p *PageCache) Sweep() error {
	return filepath.Walk(p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if time.Since(info.ModTime()) > p.maxAge {
			os.Remove(path)
		}
		return nil
	})
}

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBucket keeps objects in process memory. It backs local development
// (STORAGE_DRIVER=memory) and the tests.
type MemoryBucket struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	baseURL string

	// FailUploads / FailDeletes / FailSigning make the matching calls error.
	FailUploads bool
	FailDeletes bool
	FailSigning bool
}

func NewMemoryBucket(baseURL string) *MemoryBucket {
	return &MemoryBucket{objects: map[string]memoryObject{}, baseURL: baseURL}
}

func (m *MemoryBucket) Upload(_ context.Context, key string, body io.Reader, contentType string) error {
	if m.FailUploads {
		return errors.New("memory bucket: upload refused")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "reading upload body")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (m *MemoryBucket) Delete(_ context.Context, key string) error {
	if m.FailDeletes {
		return errors.New("memory bucket: delete refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryBucket) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if m.FailSigning {
		return "", errors.New("memory bucket: signing refused")
	}
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s?expires=%d", m.PublicURL(key), expires), nil
}

func (m *MemoryBucket) PublicURL(key string) string {
	return m.baseURL + "/" + (&url.URL{Path: key}).EscapedPath()
}

// Has reports whether key is stored.
func (m *MemoryBucket) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Object returns the stored bytes and content type of key.
func (m *MemoryBucket) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o.data, o.contentType, ok
}

func (m *MemoryBucket) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

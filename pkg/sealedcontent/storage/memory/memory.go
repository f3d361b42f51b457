package memory

import (
	"context"
	"sync"

	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// Backend is an in-memory implementation of the sealedcontent.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ sealedcontent.BlobStore = (*Backend)(nil)

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Write stores a copy of data under key
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = buf
	return nil
}

// Read returns a copy of the bytes stored under key
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, &sealedcontent.StorageError{Backend: "memory", Key: key, Op: "read", Err: sealedcontent.ErrBlobNotFound}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes key if present
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// Len returns the number of stored blobs
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Corrupt flips one bit of the blob under key. It exists for tamper tests.
func (b *Backend) Corrupt(key string, offset int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, exists := b.objects[key]
	if !exists || offset < 0 || offset >= len(data) {
		return false
	}
	data[offset] ^= 0x01
	return true
}

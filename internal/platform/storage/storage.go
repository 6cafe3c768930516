// Package storage persists document binaries. The Gateway interface has an
// in-memory implementation for tests, a local-disk implementation and an S3
// implementation.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var ErrObjectNotFound = errors.New("object not found")

// Gateway stores opaque binaries under slash-separated keys.
type Gateway interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Exists(ctx context.Context, key string) (bool, error)
	// Open returns ErrObjectNotFound when key is absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryGateway is a thread-safe in-memory Gateway. The *Err fields inject
// failures in tests.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int

	PutErr    error
	DeleteErr error
	ExistsErr error
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{objects: make(map[string][]byte)}
}

func (g *MemoryGateway) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.puts++
	if g.PutErr != nil {
		return g.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	g.objects[key] = data
	return nil
}

func (g *MemoryGateway) Exists(_ context.Context, key string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.ExistsErr != nil {
		return false, g.ExistsErr
	}
	_, ok := g.objects[key]
	return ok, nil
}

func (g *MemoryGateway) Open(_ context.Context, key string) (io.ReadCloser, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	data, ok := g.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (g *MemoryGateway) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	delete(g.objects, key)
	return nil
}

// PutCount reports how many Put calls were attempted, failed ones included.
func (g *MemoryGateway) PutCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.puts
}

func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Remove drops key without going through Delete, to simulate a binary that
// vanished behind the metadata's back.
func (g *MemoryGateway) Remove(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, key)
}

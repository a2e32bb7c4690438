package blobstore

import (
	"context"
	"sync"

	"genstudio/internal/core"
)

// MemoryStore keeps images in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string]*core.CachedImage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string]*core.CachedImage)}
}

func (s *MemoryStore) Put(_ context.Context, img *core.CachedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.ID] = cloneImage(img, true)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*core.CachedImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneImage(img, true), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*core.CachedImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.CachedImage, 0, len(s.images))
	for _, img := range s.images {
		out = append(out, cloneImage(img, false))
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, id)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = make(map[string]*core.CachedImage)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

package history

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"genstudio/internal/core"
)

// MemoryIndex keeps records in process memory.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]*core.HistoryRecord
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]*core.HistoryRecord)}
}

func cloneRecord(rec *core.HistoryRecord) *core.HistoryRecord {
	cp := *rec
	cp.ReferenceImages = slices.Clone(rec.ReferenceImages)
	cp.ImageIDs = slices.Clone(rec.ImageIDs)
	return &cp
}

// newestFirst orders by timestamp descending, then id descending.
func newestFirst(a, b *core.HistoryRecord) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (m *MemoryIndex) sorted(match func(*core.HistoryRecord) bool) []*core.HistoryRecord {
	out := make([]*core.HistoryRecord, 0, len(m.records))
	for _, rec := range m.records {
		if match == nil || match(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

func (m *MemoryIndex) Save(_ context.Context, rec *core.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryIndex) Page(_ context.Context, offset, size int) ([]*core.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.sorted(nil)
	if offset >= len(all) {
		return []*core.HistoryRecord{}, nil
	}
	return all[offset:min(offset+size, len(all))], nil
}

func (m *MemoryIndex) Search(_ context.Context, query string) ([]*core.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if query == "" {
		return m.sorted(nil), nil
	}
	return m.sorted(func(rec *core.HistoryRecord) bool {
		return promptContains(rec.Prompt, query)
	}), nil
}

func (m *MemoryIndex) Get(_ context.Context, id string) (*core.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*core.HistoryRecord)
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

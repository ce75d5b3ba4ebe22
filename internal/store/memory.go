package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

type memCollection struct {
	dim     int
	records map[int]Record
}

// Memory keeps collections in process memory.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) Name() string {
	return BackendMemory
}

func (m *Memory) Prepare(ctx context.Context, collection string, dim int, recreate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[collection]; ok && !recreate {
		if c.dim != dim {
			return fmt.Errorf("collection %s: dimension %d, want %d", collection, c.dim, dim)
		}
		return nil
	}
	m.collections[collection] = &memCollection{dim: dim, records: make(map[int]Record)}
	return nil
}

func (m *Memory) Upsert(ctx context.Context, collection string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s not prepared", collection)
	}
	for _, r := range records {
		if len(r.Vector) != c.dim {
			return fmt.Errorf("chunk %d: vector has %d dims, collection has %d", r.ChunkIndex, len(r.Vector), c.dim)
		}
	}
	for _, r := range records {
		c.records[r.ChunkIndex] = r
	}
	return nil
}

// Records returns the collection content ordered by chunk index.
func (m *Memory) Records(collection string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.ChunkIndex, b.ChunkIndex) })
	return out
}

// Has reports whether the collection was prepared.
func (m *Memory) Has(collection string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok
}

var _ Store = (*Memory)(nil)

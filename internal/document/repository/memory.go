package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ninersracing/kbwiki/internal/document"
)

// MemoryRepo is an in-memory repository used when MongoDB is not configured
// and as the fake in unit tests.
type MemoryRepo struct {
	mu         sync.RWMutex
	store      map[string]*document.Document
	order      []string
	indexReady bool
	now        func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document), indexReady: true, now: time.Now}
}

// SetClock replaces the timestamp source.
func (m *MemoryRepo) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetIndexReady toggles whether ordered sub-team queries succeed.
func (m *MemoryRepo) SetIndexReady(ready bool) {
	m.mu.Lock()
	m.indexReady = ready
	m.mu.Unlock()
}

func (m *MemoryRepo) Create(_ context.Context, doc *document.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := doc.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	if c.Tags == nil {
		c.Tags = document.Tags{}
	}
	m.store[c.ID] = c
	m.order = append(m.order, c.ID)
	doc.ID, doc.CreatedAt, doc.UpdatedAt = c.ID, c.CreatedAt, c.UpdatedAt
	return c.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return d.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Update(_ context.Context, id string, p document.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	p.Apply(d)
	d.UpdatedAt = m.now()
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRepo) QueryBySubteam(_ context.Context, subteam string, ordered bool) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ordered && !m.indexReady {
		return nil, ErrIndexNotReady
	}
	out := []*document.Document{}
	for _, id := range m.order {
		if d := m.store[id]; d.Subteam == subteam {
			out = append(out, d.Clone())
		}
	}
	if ordered {
		SortNewestFirst(out)
	}
	return out, nil
}

func (m *MemoryRepo) ListAll(_ context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.store[id].Clone())
	}
	return out, nil
}

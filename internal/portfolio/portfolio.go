package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
)

var (
	ErrNotFound  = fmt.Errorf("portfolio %w", apperr.ErrNotFound)
	ErrSlugTaken = fmt.Errorf("%w: this URL slug is already taken", apperr.ErrConflict)
)

// Section is one rich-text block of a portfolio.
type Section struct {
	ID       string `bson:"id" json:"id"`
	Title    string `bson:"title" json:"title"`
	Content  string `bson:"content" json:"content"`
	Required bool   `bson:"required" json:"required"`
}

// Portfolio is a member's public page, keyed by user id.
type Portfolio struct {
	UserID    string    `bson:"_id" json:"userId"`
	UserEmail string    `bson:"userEmail" json:"userEmail"`
	URLSlug   string    `bson:"urlSlug" json:"urlSlug"`
	Sections  []Section `bson:"sections" json:"sections"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SlugOwner maps a public slug back to its portfolio.
type SlugOwner struct {
	Slug      string `bson:"_id" json:"slug"`
	UserID    string `bson:"userId" json:"userId"`
	UserEmail string `bson:"userEmail" json:"userEmail"`
}

// Repository persists portfolios and the slug map.
type Repository interface {
	Get(ctx context.Context, userID string) (*Portfolio, error)
	Save(ctx context.Context, p *Portfolio) error
	// ClaimSlug records owner for slug, failing with ErrSlugTaken when
	// another user holds it.
	ClaimSlug(ctx context.Context, owner SlugOwner) error
	GetSlug(ctx context.Context, slug string) (*SlugOwner, error)
}

// MemoryRepo keeps portfolios in process memory.
type MemoryRepo struct {
	mu         sync.RWMutex
	portfolios map[string]*Portfolio
	slugs      map[string]SlugOwner
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{portfolios: make(map[string]*Portfolio), slugs: make(map[string]SlugOwner)}
}

func clone(p *Portfolio) *Portfolio {
	cp := *p
	cp.Sections = append([]Section(nil), p.Sections...)
	return &cp
}

func (m *MemoryRepo) Get(_ context.Context, userID string) (*Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.portfolios[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (m *MemoryRepo) Save(_ context.Context, p *Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[p.UserID] = clone(p)
	return nil
}

func (m *MemoryRepo) ClaimSlug(_ context.Context, owner SlugOwner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.slugs[owner.Slug]; ok && cur.UserID != owner.UserID {
		return ErrSlugTaken
	}
	m.slugs[owner.Slug] = owner
	return nil
}

func (m *MemoryRepo) GetSlug(_ context.Context, slug string) (*SlugOwner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.slugs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// Package comments stores discussion threads attached to documents.
package comments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

var ErrNotFound = fmt.Errorf("comment %w", apperr.ErrNotFound)

// Comment belongs to exactly one document.
type Comment struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	DocumentID string    `json:"documentId" bson:"documentId"`
	Content    string    `json:"content" bson:"content"`
	Author     string    `json:"author" bson:"author"`
	AuthorID   string    `json:"authorId,omitempty" bson:"authorId,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Repository persists comments.
type Repository interface {
	Create(ctx context.Context, c *Comment) (string, error)
	Get(ctx context.Context, id string) (*Comment, error)
	ListByDocument(ctx context.Context, documentID string) ([]*Comment, error)
	Delete(ctx context.Context, id string) error
}

// DocumentGetter is the part of the catalog comments depend on.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*document.Document, error)
}

// Service implements the comment operations.
type Service struct {
	repo Repository
	docs DocumentGetter
}

func NewService(repo Repository, docs DocumentGetter) *Service {
	return &Service{repo: repo, docs: docs}
}

// Add posts a comment on an existing document.
func (s *Service) Add(ctx context.Context, actor authz.Principal, documentID, content string) (*Comment, error) {
	if !authz.Allowed(actor, authz.Comment) {
		return nil, apperr.ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	if _, err := s.docs.Get(ctx, documentID); err != nil {
		return nil, apperr.Repository("comments.document", err)
	}
	c := &Comment{DocumentID: documentID, Content: content, Author: actor.DisplayName(), AuthorID: actor.Sub}
	if _, err := s.repo.Create(ctx, c); err != nil {
		return nil, apperr.Repository("comments.create", err)
	}
	return c, nil
}

// List returns a document's comments oldest first.
func (s *Service) List(ctx context.Context, documentID string) ([]*Comment, error) {
	out, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, apperr.Repository("comments.list", err)
	}
	sortOldestFirst(out)
	return out, nil
}

// Delete removes a comment. Elevated roles only.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id string) error {
	if !authz.CanDelete(actor.Role) {
		return apperr.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Repository("comments.delete", err)
	}
	logger.Infof("comment %s deleted by %s", id, actor.Email)
	return nil
}

func sortOldestFirst(cs []*Comment) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
}

// MemoryRepo keeps comments in process memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*Comment
	order []string
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*Comment), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, c *Comment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now()
	cp := *c
	m.store[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return c.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) ListByDocument(_ context.Context, documentID string) ([]*Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Comment{}
	for _, id := range m.order {
		if c, ok := m.store[id]; ok && c.DocumentID == documentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
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

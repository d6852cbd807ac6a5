package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/metrics"
)

// Request statuses. A request only ever moves from pending to approved or denied.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

var (
	ErrNotFound = fmt.Errorf("account request %w", apperr.ErrNotFound)
	// ErrDecided is returned when acting on a request that is no longer pending.
	ErrDecided = fmt.Errorf("%w: account request already decided", apperr.ErrConflict)
	// ErrIndexNotReady means the status index is missing or still building.
	ErrIndexNotReady = fmt.Errorf("%w: account request index not ready", apperr.ErrRepository)
)

// Request is a sign-up awaiting a captain's decision.
type Request struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	FirstName    string     `bson:"firstName" json:"firstName"`
	LastName     string     `bson:"lastName" json:"lastName"`
	FullName     string     `bson:"fullName" json:"fullName"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"passwordHash" json:"-"`
	Role         string     `bson:"role" json:"role"`
	Subteam      string     `bson:"subteam" json:"subteam"`
	Status       string     `bson:"status" json:"status"`
	Note         string     `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	DecidedAt    *time.Time `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
}

// Decision is the terminal state written by SetStatus.
type Decision struct {
	Status string
	Note   string
	At     time.Time
}

// Repository persists account requests.
type Repository interface {
	Create(ctx context.Context, r *Request) (string, error)
	Get(ctx context.Context, id string) (*Request, error)
	// QueryPending returns pending requests; ordered=true sorts newest first
	// using the status index and may fail with ErrIndexNotReady.
	QueryPending(ctx context.Context, ordered bool) ([]*Request, error)
	ListAll(ctx context.Context) ([]*Request, error)
	SetStatus(ctx context.Context, id string, d Decision) error
	Delete(ctx context.Context, id string) error
}

// ListPending returns pending requests newest first, scanning the whole
// collection when the status index is unavailable.
func ListPending(ctx context.Context, repo Repository) ([]*Request, error) {
	rs, err := repo.QueryPending(ctx, true)
	if err == nil {
		return rs, nil
	}
	if !errors.Is(err, ErrIndexNotReady) {
		return nil, err
	}
	logger.Warnf("accounts: status index not ready, scanning")
	metrics.IndexFallbacks.WithLabelValues("accountRequests").Inc()
	all, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(all))
	for _, r := range all {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []*Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}

// MemoryRepo keeps requests in process memory.
type MemoryRepo struct {
	mu         sync.RWMutex
	byID       map[string]*Request
	order      []string
	indexReady bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]*Request), indexReady: true}
}

// SetIndexReady toggles whether ordered pending queries succeed.
func (m *MemoryRepo) SetIndexReady(ready bool) {
	m.mu.Lock()
	m.indexReady = ready
	m.mu.Unlock()
}

func (m *MemoryRepo) Create(_ context.Context, r *Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	cp.ID = uuid.NewString()
	cp.Email = models.NormalizeEmail(cp.Email)
	m.byID[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	return cp.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepo) QueryPending(_ context.Context, ordered bool) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ordered && !m.indexReady {
		return nil, ErrIndexNotReady
	}
	var out []*Request
	for _, id := range m.order {
		if r := m.byID[id]; r.Status == StatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	if ordered {
		sortNewestFirst(out)
	}
	return out, nil
}

func (m *MemoryRepo) ListAll(_ context.Context) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Request, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepo) SetStatus(_ context.Context, id string, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	at := d.At
	r.Status, r.Note, r.DecidedAt = d.Status, d.Note, &at
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

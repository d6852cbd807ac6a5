package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/metrics"
)

var (
	ErrNotFound = fmt.Errorf("document %w", apperr.ErrNotFound)
	// ErrIndexNotReady is returned by an ordered sub-team query when the
	// (subteam, createdAt desc) index does not exist yet.
	ErrIndexNotReady = fmt.Errorf("%w: subteam index not ready", apperr.ErrRepository)
)

// Repository is the storage boundary for documents.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) (string, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	Update(ctx context.Context, id string, p document.Patch) error
	Delete(ctx context.Context, id string) error
	// QueryBySubteam returns the documents of one sub-team. With ordered set the
	// result is sorted by createdAt descending using the composite index.
	QueryBySubteam(ctx context.Context, subteam string, ordered bool) ([]*document.Document, error)
	// ListAll returns every document in insertion order.
	ListAll(ctx context.Context) ([]*document.Document, error)
}

// ListBySubteam returns the sub-team's documents newest first. When the index
// is missing it falls back to a full scan with client-side filter and sort;
// both paths yield the same order.
func ListBySubteam(ctx context.Context, repo Repository, subteam string) ([]*document.Document, error) {
	docs, err := repo.QueryBySubteam(ctx, subteam, true)
	if err == nil {
		return docs, nil
	}
	if !errors.Is(err, ErrIndexNotReady) {
		return nil, err
	}

	logger.Warnf("subteam index not ready, scanning documents for %s", subteam)
	metrics.IndexFallbacks.WithLabelValues("documents").Inc()

	all, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*document.Document, 0, len(all))
	for _, d := range all {
		if d.Subteam == subteam {
			out = append(out, d)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders by createdAt descending, id descending on ties.
func SortNewestFirst(docs []*document.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

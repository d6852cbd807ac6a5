// Package catalog composes the document repository, serial numbering and the
// tag catalog into the operations exposed to users.
package catalog

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/serial"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/internal/tags"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/metrics"
	"github.com/ninersracing/kbwiki/pkg/validate"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "documents"

// CreateInput carries the fields a user supplies for a new document.
type CreateInput struct {
	Subteam     string   `json:"subteam" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Content     string   `json:"content" validate:"required"`
	Tags        []string `json:"tags"`
	Attachments []string `json:"attachments"`
}

// UpdateInput is a partial edit; nil fields are kept.
type UpdateInput struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// SubteamView is the browse result for one sub-team.
type SubteamView struct {
	Subteam   subteam.Subteam      `json:"subteam"`
	Pinned    []*document.Document `json:"pinned"`
	Unpinned  []*document.Document `json:"unpinned"`
	TagCounts []tags.TagCount      `json:"tagCounts"`
	Filter    []string             `json:"filter"`
}

// Service implements the document catalog.
type Service struct {
	repo     repository.Repository
	serials  serial.Generator
	preview  *serial.ScanGenerator
	tags     *tags.Catalog
	snapshot *cache.Cache
	loads    singleflight.Group
	writes   atomic.Uint64
}

// NewService builds a catalog. gen may be nil, in which case serials come from
// a scan of existing documents. The search snapshot lives for snapshotTTL.
func NewService(repo repository.Repository, gen serial.Generator, snapshotTTL time.Duration) *Service {
	preview := serial.NewScanGenerator(repo)
	if gen == nil {
		gen = preview
	}
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Second
	}
	return &Service{
		repo:     repo,
		serials:  gen,
		preview:  preview,
		tags:     tags.NewCatalog(repo),
		snapshot: cache.New(snapshotTTL, 2*snapshotTTL),
	}
}

// Create validates in, numbers and stores a new document authored by actor.
// A numbering failure is retried once; after that the document is saved
// without a serial.
func (s *Service) Create(ctx context.Context, actor authz.Principal, in CreateInput) (*document.Document, error) {
	if !authz.Allowed(actor, authz.CreateDocument) {
		return nil, apperr.ErrUnauthorized
	}
	in.Title = strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := subteam.Lookup(in.Subteam); err != nil {
		return nil, err
	}

	sn := s.nextSerial(ctx, in.Subteam)
	author := actor.DisplayName()
	if author == "" {
		author = "Unknown"
	}
	doc := &document.Document{
		Subteam:      in.Subteam,
		SerialNumber: sn,
		Title:        in.Title,
		Content:      in.Content,
		Tags:         document.NormalizeTags(in.Tags),
		Attachments:  append([]string{}, in.Attachments...),
		Author:       author,
		AuthorID:     actor.Sub,
	}
	if _, err := s.repo.Create(ctx, doc); err != nil {
		return nil, apperr.Repository("catalog.create", err)
	}
	s.invalidate()
	metrics.DocumentsCreated.WithLabelValues(in.Subteam).Inc()
	logger.WithFields(logrus.Fields{"id": doc.ID, "serial": sn, "subteam": in.Subteam}).Info("document created")
	return doc, nil
}

func (s *Service) nextSerial(ctx context.Context, subteamID string) string {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var sn string
		if sn, err = s.serials.Next(ctx, subteamID); err == nil {
			return sn
		}
	}
	logger.WithFields(logrus.Fields{"subteam": subteamID}).WithError(err).Warn("serial numbering failed, saving without serial")
	metrics.SerialFailures.WithLabelValues(subteamID).Inc()
	return ""
}

func (s *Service) Get(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Repository("catalog.get", err)
	}
	return d, nil
}

// List returns every document in insertion order.
func (s *Service) List(ctx context.Context) ([]*document.Document, error) {
	docs, err := s.corpus(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Principal, id string, in UpdateInput) (*document.Document, error) {
	if !authz.Allowed(actor, authz.UpdateDocument) {
		return nil, apperr.ErrUnauthorized
	}
	p := document.Patch{}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, apperr.Validation("title is required")
		}
		p.Title = &t
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, apperr.Validation("content is required")
		}
		p.Content = in.Content
	}
	if in.Tags != nil {
		t := document.NormalizeTags(*in.Tags)
		p.Tags = &t
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return nil, apperr.Repository("catalog.update", err)
	}
	s.invalidate()
	return s.Get(ctx, id)
}

// TogglePin flips isPinned and nothing else.
func (s *Service) TogglePin(ctx context.Context, actor authz.Principal, id string) (*document.Document, error) {
	if !authz.Allowed(actor, authz.TogglePin) {
		return nil, apperr.ErrUnauthorized
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pinned := !d.IsPinned
	if err := s.repo.Update(ctx, id, document.Patch{IsPinned: &pinned}); err != nil {
		return nil, apperr.Repository("catalog.pin", err)
	}
	s.invalidate()
	return s.Get(ctx, id)
}

// Delete removes the document. Comments and attachments are left in place.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id string) error {
	if !authz.CanDelete(actor.Role) {
		return apperr.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Repository("catalog.delete", err)
	}
	s.invalidate()
	logger.WithFields(logrus.Fields{"id": id, "by": actor.Email}).Info("document deleted")
	return nil
}

// Browse splits the sub-team's documents into pinned and unpinned, newest
// first. Only the unpinned list is narrowed by filter, and a document must
// carry every filter tag to stay. Tag counts cover the whole unpinned list.
func (s *Service) Browse(ctx context.Context, subteamID string, filter []string) (*SubteamView, error) {
	st, err := subteam.Lookup(subteamID)
	if err != nil {
		return nil, err
	}
	docs, err := repository.ListBySubteam(ctx, s.repo, subteamID)
	if err != nil {
		return nil, apperr.Repository("catalog.browse", err)
	}

	filter = tags.Normalize(filter)
	view := &SubteamView{Subteam: st, Pinned: []*document.Document{}, Unpinned: []*document.Document{}, Filter: filter}
	var unpinned []*document.Document
	for _, d := range docs {
		if d.IsPinned {
			view.Pinned = append(view.Pinned, d)
			continue
		}
		unpinned = append(unpinned, d)
		if tags.MatchesAll(d.Tags, filter) {
			view.Unpinned = append(view.Unpinned, d)
		}
	}
	view.TagCounts = tags.Counts(unpinned)
	return view, nil
}

// TagsForSubteam returns the sorted tag vocabulary of a sub-team.
func (s *Service) TagsForSubteam(ctx context.Context, subteamID string) ([]string, error) {
	return s.tags.ForSubteam(ctx, subteamID)
}

// NextSerial previews the serial the next document would likely receive.
func (s *Service) NextSerial(ctx context.Context, subteamID string) (string, error) {
	return s.preview.Next(ctx, subteamID)
}

// Search matches query case-insensitively against title, serial, each tag,
// content and author. A blank query matches nothing. Results keep the
// insertion order of the corpus.
func (s *Service) Search(ctx context.Context, query string) ([]*document.Document, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*document.Document{}, nil
	}
	docs, err := s.corpus(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := []*document.Document{}
	for _, d := range docs {
		if matches(d, q) {
			out = append(out, d.Clone())
		}
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

func matches(d *document.Document, q string) bool {
	if contains(d.Title, q) || contains(d.SerialNumber, q) || contains(d.Content, q) || contains(d.Author, q) {
		return true
	}
	for _, t := range d.Tags {
		if contains(t, q) {
			return true
		}
	}
	return false
}

func contains(field, q string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), q)
}

// corpus returns the cached full-scan snapshot, loading it when absent.
// Concurrent misses share a single scan.
func (s *Service) corpus(ctx context.Context) ([]*document.Document, error) {
	if v, ok := s.snapshot.Get(snapshotKey); ok {
		return v.([]*document.Document), nil
	}
	v, err, _ := s.loads.Do(snapshotKey, func() (interface{}, error) {
		seen := s.writes.Load()
		docs, err := s.repo.ListAll(ctx)
		if err != nil {
			return nil, apperr.Repository("catalog.scan", err)
		}
		if s.writes.Load() == seen {
			s.snapshot.SetDefault(snapshotKey, docs)
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*document.Document), nil
}

// invalidate drops the search snapshot so the writer sees its own change.
// Forget makes the next miss start a fresh scan instead of joining one that
// began before the write.
func (s *Service) invalidate() {
	s.writes.Add(1)
	s.loads.Forget(snapshotKey)
	s.snapshot.Delete(snapshotKey)
}

package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

// MaxContentBytes bounds the JSON encoding of all sections.
const MaxContentBytes = 900000

var slugRE = regexp.MustCompile(`^[a-z0-9-]+$`)

// RequiredSections must be present with content on every save.
var RequiredSections = []Section{
	{ID: "intro", Title: "Introduction", Required: true},
	{ID: "experience", Title: "Experience", Required: true},
	{ID: "contact", Title: "Contact", Required: true},
}

// Public is what anonymous visitors see.
type Public struct {
	UserEmail string    `json:"userEmail"`
	URLSlug   string    `json:"urlSlug"`
	Sections  []Section `json:"sections"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func blank(content string) bool {
	c := strings.TrimSpace(content)
	return c == "" || c == "<p><br></p>"
}

func validateSections(sections []Section) ([]Section, error) {
	byID := make(map[string]int, len(sections))
	for i, s := range sections {
		byID[s.ID] = i
	}
	out := append([]Section(nil), sections...)
	for _, req := range RequiredSections {
		i, ok := byID[req.ID]
		if !ok || blank(out[i].Content) {
			return nil, apperr.Validation("please add content to the %q section", req.Title)
		}
		out[i].Required = true
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxContentBytes {
		return nil, apperr.Validation("portfolio content is too large")
	}
	return out, nil
}

// Save creates or updates the actor's portfolio. The slug is fixed by the
// first save.
func (s *Service) Save(ctx context.Context, actor authz.Principal, slug string, sections []Section) (*Portfolio, error) {
	if !authz.Allowed(actor, authz.EditPortfolio) {
		return nil, apperr.ErrUnauthorized
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperr.Validation("url slug is required")
	}
	if !slugRE.MatchString(slug) {
		return nil, apperr.Validation("url slug can only contain lowercase letters, numbers, and hyphens")
	}
	sections, err := validateSections(sections)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, actor.Sub)
	switch {
	case err == nil:
		if existing.URLSlug != "" && existing.URLSlug != slug {
			return nil, apperr.Validation("url slug cannot be changed once set")
		}
	case errors.Is(err, apperr.ErrNotFound):
		existing = nil
	default:
		return nil, apperr.Repository("portfolio.get", err)
	}

	if err := s.repo.ClaimSlug(ctx, SlugOwner{Slug: slug, UserID: actor.Sub, UserEmail: actor.Email}); err != nil {
		return nil, apperr.Repository("portfolio.slug", err)
	}
	now := s.now().UTC()
	p := &Portfolio{
		UserID:    actor.Sub,
		UserEmail: actor.Email,
		URLSlug:   slug,
		Sections:  sections,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, apperr.Repository("portfolio.save", err)
	}
	logger.Debugf("portfolio saved for %s at /%s", actor.Sub, slug)
	return p, nil
}

// Mine returns the actor's portfolio.
func (s *Service) Mine(ctx context.Context, actor authz.Principal) (*Portfolio, error) {
	if actor.IsGuest() {
		return nil, apperr.ErrUnauthorized
	}
	p, err := s.repo.Get(ctx, actor.Sub)
	return p, apperr.Repository("portfolio.get", err)
}

// Public resolves slug to its portfolio for anonymous viewing.
func (s *Service) Public(ctx context.Context, slug string) (*Public, error) {
	owner, err := s.repo.GetSlug(ctx, slug)
	if err != nil {
		return nil, apperr.Repository("portfolio.slug", err)
	}
	p, err := s.repo.Get(ctx, owner.UserID)
	if err != nil {
		return nil, apperr.Repository("portfolio.get", err)
	}
	return &Public{UserEmail: p.UserEmail, URLSlug: p.URLSlug, Sections: p.Sections, UpdatedAt: p.UpdatedAt}, nil
}

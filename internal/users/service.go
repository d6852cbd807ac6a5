package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"golang.org/x/crypto/bcrypt"
)

// NewUser is the input for creating an account directly.
type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	Role         string
	Subteam      string
	Password     string
	PasswordHash string
}

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Create stores an active user. Either Password or a precomputed
// PasswordHash must be given.
func (s *Service) Create(ctx context.Context, in NewUser) (*models.User, error) {
	if !authz.ValidRole(in.Role) {
		return nil, apperr.Validation("role must be one of: captain team-lead design-team")
	}
	if in.Subteam != "" && !subteam.Valid(in.Subteam) {
		return nil, apperr.ErrInvalidSubteam
	}
	hash := in.PasswordHash
	if hash == "" {
		if in.Password == "" {
			return nil, apperr.Validation("password is required")
		}
		var err error
		if hash, err = HashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	u := &models.User{
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		FullName:     strings.TrimSpace(in.FirstName + " " + in.LastName),
		Role:         in.Role,
		Subteam:      in.Subteam,
		Status:       models.StatusActive,
		PasswordHash: hash,
		ApprovedAt:   &now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperr.Repository("users.create", err)
	}
	return u, nil
}

// Authenticate checks an e-mail/password pair against an active account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.Repository("users.auth", err)
	}
	if u.Status != models.StatusActive || u.PasswordHash == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrUnauthenticated
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.Get(ctx, id)
	return u, apperr.Repository("users.get", err)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	return u, apperr.Repository("users.get", err)
}

// Exists reports whether an account uses email.
func (s *Service) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Repository("users.get", err)
	}
	return true, nil
}

// ListActive returns active users ordered by display name.
func (s *Service) ListActive(ctx context.Context) ([]*models.User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Repository("users.list", err)
	}
	out := make([]*models.User, 0, len(all))
	for _, u := range all {
		if u.Status == models.StatusActive {
			out = append(out, u)
		}
	}
	sortByName(out)
	return out, nil
}

// Update changes role and/or sub-team after validating both.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*models.User, error) {
	if p.Role != nil && !authz.ValidRole(*p.Role) {
		return nil, apperr.Validation("role must be one of: captain team-lead design-team")
	}
	if p.Subteam != nil && !subteam.Valid(*p.Subteam) {
		return nil, apperr.ErrInvalidSubteam
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return nil, apperr.Repository("users.update", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return apperr.Repository("users.delete", s.repo.Delete(ctx, id))
}

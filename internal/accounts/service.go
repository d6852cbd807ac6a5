package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/validate"
	"github.com/sirupsen/logrus"
)

// Notes recorded on requests approved without creating an account.
const (
	NoteExistingAccount = "User already had an existing account"
	NoteAutoApproved    = "Auto-approved: User already had account"
)

// SubmitInput is the public sign-up form.
type SubmitInput struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=team-lead design-team"`
	Subteam         string `json:"subteam" validate:"required"`
}

// PendingView is the captain's review queue.
type PendingView struct {
	Requests   []*Request `json:"requests"`
	Duplicates []*Request `json:"duplicates"`
}

// Service handles account requests and team membership.
type Service struct {
	repo  Repository
	users *users.Service
	now   func() time.Time
}

func NewService(repo Repository, us *users.Service) *Service {
	return &Service{repo: repo, users: us, now: time.Now}
}

func requireCaptain(actor authz.Principal) error {
	if !authz.Allowed(actor, authz.ManageAccounts) {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Submit records a pending request. The password is kept only as a bcrypt hash.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = models.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := validate.Email(in.Email); err != nil {
		return nil, err
	}
	if _, err := subteam.Lookup(in.Subteam); err != nil {
		return nil, err
	}
	hash, err := users.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	r := &Request{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		FullName:     in.FirstName + " " + in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Subteam:      in.Subteam,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.repo.Create(ctx, r)
	if err != nil {
		return nil, apperr.Repository("accounts.submit", err)
	}
	r.ID = id
	logger.WithFields(logrus.Fields{"request": id, "subteam": in.Subteam}).Info("account request submitted")
	return r, nil
}

// Pending lists open requests for e-mails without an account, newest first.
// Older requests for the same e-mail are returned as duplicates.
func (s *Service) Pending(ctx context.Context, actor authz.Principal) (*PendingView, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	rs, err := ListPending(ctx, s.repo)
	if err != nil {
		return nil, apperr.Repository("accounts.pending", err)
	}
	existing, err := s.existingEmails(ctx)
	if err != nil {
		return nil, err
	}
	view := &PendingView{Requests: []*Request{}, Duplicates: []*Request{}}
	seen := make(map[string]bool)
	for _, r := range rs {
		email := models.NormalizeEmail(r.Email)
		if existing[email] {
			continue
		}
		if seen[email] {
			view.Duplicates = append(view.Duplicates, r)
			continue
		}
		seen[email] = true
		view.Requests = append(view.Requests, r)
	}
	return view, nil
}

func (s *Service) existingEmails(ctx context.Context) (map[string]bool, error) {
	us, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(us))
	for _, u := range us {
		out[models.NormalizeEmail(u.Email)] = true
	}
	return out, nil
}

func (s *Service) pendingRequest(ctx context.Context, id string) (*Request, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Repository("accounts.get", err)
	}
	if r.Status != StatusPending {
		return nil, ErrDecided
	}
	return r, nil
}

// Approve creates the account and marks the request approved. When the
// e-mail already has an account only the request is updated.
func (s *Service) Approve(ctx context.Context, actor authz.Principal, id string) (*Request, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	r, err := s.pendingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.users.Exists(ctx, r.Email)
	if err != nil {
		return nil, err
	}
	note := ""
	if exists {
		note = NoteExistingAccount
	} else {
		_, err := s.users.Create(ctx, users.NewUser{
			Email:        r.Email,
			FirstName:    r.FirstName,
			LastName:     r.LastName,
			Role:         r.Role,
			Subteam:      r.Subteam,
			PasswordHash: r.PasswordHash,
		})
		switch {
		case errors.Is(err, users.ErrEmailExists):
			note = NoteExistingAccount
		case err != nil:
			return nil, err
		}
	}
	if err := s.decide(ctx, r, StatusApproved, note); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"request": id, "by": actor.Email}).Info("account request approved")
	return r, nil
}

func (s *Service) Deny(ctx context.Context, actor authz.Principal, id string) (*Request, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	r, err := s.pendingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decide(ctx, r, StatusDenied, ""); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) decide(ctx context.Context, r *Request, status, note string) error {
	at := s.now().UTC()
	if err := s.repo.SetStatus(ctx, r.ID, Decision{Status: status, Note: note, At: at}); err != nil {
		return apperr.Repository("accounts.decide", err)
	}
	r.Status, r.Note, r.DecidedAt = status, note, &at
	return nil
}

// DeleteRequest removes a request outright, typically a duplicate.
func (s *Service) DeleteRequest(ctx context.Context, actor authz.Principal, id string) error {
	if err := requireCaptain(actor); err != nil {
		return err
	}
	return apperr.Repository("accounts.delete", s.repo.Delete(ctx, id))
}

// CleanupOrphaned approves every pending request whose e-mail already has an
// account and returns how many were closed.
func (s *Service) CleanupOrphaned(ctx context.Context, actor authz.Principal) (int, error) {
	if err := requireCaptain(actor); err != nil {
		return 0, err
	}
	rs, err := ListPending(ctx, s.repo)
	if err != nil {
		return 0, apperr.Repository("accounts.pending", err)
	}
	existing, err := s.existingEmails(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rs {
		if !existing[models.NormalizeEmail(r.Email)] {
			continue
		}
		if err := s.decide(ctx, r, StatusApproved, NoteAutoApproved); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		logger.Infof("accounts: cleaned up %d orphaned requests", n)
	}
	return n, nil
}

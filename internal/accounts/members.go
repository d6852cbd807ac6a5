package accounts

import (
	"context"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/internal/users"
)

// MembersBySubteam groups active users by sub-team. Users without one are
// listed under general.
func (s *Service) MembersBySubteam(ctx context.Context, actor authz.Principal) (map[string][]*models.User, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	us, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*models.User)
	for _, u := range us {
		key := u.Subteam
		if key == "" {
			key = subteam.General
		}
		out[key] = append(out[key], u)
	}
	return out, nil
}

// SubteamMembers lists the active members of one sub-team to any signed-in user.
func (s *Service) SubteamMembers(ctx context.Context, actor authz.Principal, subteamID string) ([]*models.User, error) {
	if actor.IsGuest() {
		return nil, apperr.ErrUnauthorized
	}
	if _, err := subteam.Lookup(subteamID); err != nil {
		return nil, err
	}
	us, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := []*models.User{}
	for _, u := range us {
		key := u.Subteam
		if key == "" {
			key = subteam.General
		}
		if key == subteamID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Service) UpdateMember(ctx context.Context, actor authz.Principal, id string, p users.Patch) (*models.User, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	if p.Role == nil && p.Subteam == nil {
		return nil, apperr.Validation("nothing to update")
	}
	return s.users.Update(ctx, id, p)
}

// RemoveMember deletes the account. Captains cannot remove themselves.
func (s *Service) RemoveMember(ctx context.Context, actor authz.Principal, id string) error {
	if err := requireCaptain(actor); err != nil {
		return err
	}
	if id == actor.Sub {
		return apperr.Validation("cannot remove your own account")
	}
	return s.users.Delete(ctx, id)
}

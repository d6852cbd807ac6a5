package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/pkg/middleware"
)

// UserLookup finds the local account behind a verified identity.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// RoleResolver builds principals from token claims, taking role and sub-team
// from the users collection so role changes apply without a new token.
// Identities without a local account keep the team role Keycloak assigned
// them and are read-only guests otherwise.
func RoleResolver(users UserLookup) middleware.PrincipalResolver {
	return func(ctx context.Context, claims map[string]interface{}) (authz.Principal, error) {
		p, err := middleware.ClaimsPrincipal(ctx, claims)
		if err != nil {
			return p, err
		}
		if p.Email == "" {
			p.Role = authz.RoleGuest
		}
		if p.IsGuest() {
			return p, nil
		}
		u, err := users.GetByEmail(ctx, p.Email)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			p.Role = authz.RoleGuest
			p.Subteam = ""
			if role, _ := claims[TeamRoleClaim].(string); authz.ValidRole(role) {
				p.Role = role
			}
			return p, nil
		case err != nil:
			return p, fmt.Errorf("resolve principal: %w", err)
		}
		p.Sub = u.ID
		p.Role = u.Role
		p.Subteam = u.Subteam
		if p.Name == "" {
			p.Name = u.DisplayName()
		}
		return p, nil
	}
}

package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/pkg/middleware"
)

// TeamRoleClaim carries the team role derived from Keycloak role
// assignments. Only tokens verified by this package ever contain it.
const TeamRoleClaim = "kbTeamRole"

// rolePrecedence lists the Keycloak roles honoured, strongest first.
var rolePrecedence = []string{authz.RoleCaptain, authz.RoleTeamLead, authz.RoleDesignTeam}

// Verifier checks Keycloak ID tokens against the realm's published keys.
type Verifier struct {
	clientID string
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer and builds a verifier for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{
		clientID: clientID,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return newTeamToken(claims, v.clientID), nil
}

// teamToken exposes ID token claims with the mapped team role added.
type teamToken struct {
	claims map[string]interface{}
}

func newTeamToken(claims map[string]interface{}, clientID string) *teamToken {
	delete(claims, TeamRoleClaim)
	if role := TeamRole(claims, clientID); role != "" {
		claims[TeamRoleClaim] = role
	}
	return &teamToken{claims: claims}
}

func (t *teamToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// TeamRole picks the strongest team role from the realm roles and the
// client roles of clientID. It returns "" when none is assigned.
func TeamRole(claims map[string]interface{}, clientID string) string {
	assigned := map[string]bool{}
	collect := func(access interface{}) {
		m, _ := access.(map[string]interface{})
		roles, _ := m["roles"].([]interface{})
		for _, r := range roles {
			if s, ok := r.(string); ok {
				assigned[s] = true
			}
		}
	}
	collect(claims["realm_access"])
	if res, ok := claims["resource_access"].(map[string]interface{}); ok && clientID != "" {
		collect(res[clientID])
	}
	for _, role := range rolePrecedence {
		if assigned[role] {
			return role
		}
	}
	return ""
}

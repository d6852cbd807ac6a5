// Package authz holds the single role policy consulted by every mutating
// operation.
package authz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cedar-policy/cedar-go"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

//go:embed policies/policy.cedar
var policyContent string

// Roles
const (
	RoleCaptain    = "captain"
	RoleTeamLead   = "team-lead"
	RoleDesignTeam = "design-team"
	RoleGuest      = "guest"
)

// Action names a capability checked against the policy.
type Action string

const (
	Read           Action = "Read"
	CreateDocument Action = "CreateDocument"
	UpdateDocument Action = "UpdateDocument"
	TogglePin      Action = "TogglePin"
	Comment        Action = "Comment"
	EditPortfolio  Action = "EditPortfolio"
	DeleteDocument Action = "DeleteDocument"
	DeleteComment  Action = "DeleteComment"
	ManageAccounts Action = "ManageAccounts"
)

// Principal is the authenticated caller as seen by the services.
type Principal struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	Subteam string `json:"subteam,omitempty"`
}

// DisplayName is the author string recorded on documents and comments.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// IsGuest reports whether p holds only the shared team password session.
func (p Principal) IsGuest() bool {
	return p.Role == RoleGuest
}

// ValidRole reports whether role is assignable to a team member.
func ValidRole(role string) bool {
	switch role {
	case RoleCaptain, RoleTeamLead, RoleDesignTeam:
		return true
	}
	return false
}

// Authorizer evaluates the embedded cedar policy.
type Authorizer struct {
	policySet *cedar.PolicySet
}

// NewAuthorizer parses the embedded policy.
func NewAuthorizer() (*Authorizer, error) {
	policySet, err := cedar.NewPolicySetFromBytes("policy.cedar", []byte(policyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse policies: %w", err)
	}
	return &Authorizer{policySet: policySet}, nil
}

// Allowed reports whether p may perform action. Evaluation errors deny.
func (a *Authorizer) Allowed(p Principal, action Action) bool {
	id := p.Sub
	if id == "" {
		id = "anonymous"
	}
	entitiesJSON := []map[string]interface{}{
		{
			"uid":     map[string]string{"type": "KB::User", "id": id},
			"attrs":   map[string]interface{}{"role": p.Role},
			"parents": []interface{}{},
		},
	}
	raw, err := json.Marshal(entitiesJSON)
	if err != nil {
		logger.Errorf("authz: marshal entities: %v", err)
		return false
	}
	var entities cedar.EntityMap
	if err := json.Unmarshal(raw, &entities); err != nil {
		logger.Errorf("authz: unmarshal entities: %v", err)
		return false
	}

	req := cedar.Request{
		Principal: cedar.NewEntityUID(cedar.EntityType("KB::User"), cedar.String(id)),
		Action:    cedar.NewEntityUID(cedar.EntityType("KB::Action"), cedar.String(string(action))),
		Resource:  cedar.NewEntityUID(cedar.EntityType("KB::Catalog"), cedar.String("kb")),
		Context:   cedar.NewRecord(cedar.RecordMap{}),
	}
	decision, _ := a.policySet.IsAuthorized(entities, req)
	return decision == cedar.Allow
}

var (
	defaultOnce sync.Once
	defaultAuth *Authorizer
)

// Default returns the process-wide authorizer. The embedded policy is part of
// the binary, so a parse failure is fatal.
func Default() *Authorizer {
	defaultOnce.Do(func() {
		a, err := NewAuthorizer()
		if err != nil {
			logger.Fatalf("authz: %v", err)
		}
		defaultAuth = a
	})
	return defaultAuth
}

// Allowed evaluates p against the default authorizer.
func Allowed(p Principal, action Action) bool {
	return Default().Allowed(p, action)
}

// CanDelete is the single delete check used for documents and comments.
func CanDelete(role string) bool {
	return Allowed(Principal{Sub: "role:" + role, Role: role}, DeleteDocument)
}

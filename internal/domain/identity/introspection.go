// Package identity resolves an actor's organizations, roles and apps from the relationship graph.
package identity

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	RolePlatformAdmin = "PLATFORM_ADMIN"
	RoleMember        = "MEMBER"

	// DataKeyRole and DataKeyOrganization are relationship_data keys on identity edges
	DataKeyRole         = "role"
	DataKeyPermissions  = "permissions"
	DataKeyOrganization = "organization_id"
)

// OrganizationAccess is the actor's standing in one organization
type OrganizationAccess struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	Apps        []string  `json:"apps"`
}

// Introspection is the resolved identity of an actor
type Introspection struct {
	ActorID         uuid.UUID            `json:"actor_id"`
	Organizations   []OrganizationAccess `json:"organizations"`
	IsPlatformAdmin bool                 `json:"is_platform_admin"`
}

// Organization finds the access entry for organizationID
func (i *Introspection) Organization(organizationID uuid.UUID) (OrganizationAccess, bool) {
	for _, o := range i.Organizations {
		if o.ID == organizationID {
			return o, true
		}
	}
	return OrganizationAccess{}, false
}

// CanAccess reports whether the actor may act in organizationID
func (i *Introspection) CanAccess(organizationID uuid.UUID) bool {
	if i.IsPlatformAdmin {
		return true
	}
	_, ok := i.Organization(organizationID)
	return ok
}

// OrgInfo is what introspection needs to know about an organization
type OrgInfo struct {
	ID   uuid.UUID
	Name string
	Apps []string
}

// RoleGrant is a HAS_ROLE edge resolved to its role name
type RoleGrant struct {
	RoleName       string
	OrganizationID uuid.UUID // uuid.Nil for grants that apply everywhere
}

// Build merges membership edges and role grants into an Introspection.
// The membership edge's role is authoritative for the primary role; grants add to the role set.
func Build(actorID uuid.UUID, memberships []*relationship.Relationship, grants []RoleGrant, orgs map[uuid.UUID]OrgInfo) *Introspection {
	out := &Introspection{ActorID: actorID, Organizations: []OrganizationAccess{}}

	for _, g := range grants {
		if normalizeRole(g.RoleName) == RolePlatformAdmin {
			out.IsPlatformAdmin = true
		}
	}

	seen := make(map[uuid.UUID]bool)
	for _, m := range memberships {
		if !m.IsActive || m.RelationshipType != relationship.TypeMemberOf {
			continue
		}
		orgID := m.ToEntityID
		info, ok := orgs[orgID]
		if !ok || seen[orgID] {
			continue
		}
		seen[orgID] = true

		primary := normalizeRole(m.DataString(DataKeyRole))
		if orgID == shared.PlatformOrganizationID && primary == RolePlatformAdmin {
			out.IsPlatformAdmin = true
		}

		var roles []string
		if primary != "" {
			roles = append(roles, primary)
		}
		for _, g := range grants {
			if g.OrganizationID == orgID || g.OrganizationID == uuid.Nil {
				if r := normalizeRole(g.RoleName); r != "" {
					roles = append(roles, r)
				}
			}
		}
		slices.Sort(roles)
		roles = slices.Compact(roles)
		if primary == "" {
			primary = RoleMember
			if len(roles) > 0 {
				primary = roles[0]
			}
		}
		if roles == nil {
			roles = []string{primary}
		}

		permissions := m.DataStrings(DataKeyPermissions)
		if permissions == nil {
			permissions = []string{}
		}
		apps := slices.Clone(info.Apps)
		if apps == nil {
			apps = []string{}
		}
		out.Organizations = append(out.Organizations, OrganizationAccess{
			ID:          orgID,
			Name:        info.Name,
			Role:        primary,
			Roles:       roles,
			Permissions: permissions,
			Apps:        apps,
		})
	}

	slices.SortFunc(out.Organizations, func(a, b OrganizationAccess) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func normalizeRole(r string) string {
	return strings.ToUpper(strings.TrimSpace(r))
}

// HintStore caches introspection results per actor
type HintStore interface {
	Get(ctx context.Context, actorID uuid.UUID) (*Introspection, bool, error)
	Set(ctx context.Context, actorID uuid.UUID, value *Introspection, ttl time.Duration) error
	Invalidate(ctx context.Context, actorIDs ...uuid.UUID) error
}

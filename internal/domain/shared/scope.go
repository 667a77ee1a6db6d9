package shared

import (
	"github.com/google/uuid"
)

// PlatformOrganizationID is the reserved organization that hosts identity and role registries
var PlatformOrganizationID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// OrgScope identifies the organization and actor every operation runs under
type OrgScope struct {
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
}

// NewOrgScope builds a validated scope
func NewOrgScope(organizationID, actorID uuid.UUID) (OrgScope, error) {
	if err := RequireOrganization(organizationID); err != nil {
		return OrgScope{}, err
	}
	return OrgScope{OrganizationID: organizationID, ActorID: actorID}, nil
}

// Validate checks that the scope carries an organization
func (s OrgScope) Validate() error {
	return RequireOrganization(s.OrganizationID)
}

// IsPlatform reports whether the scope targets the platform organization
func (s OrgScope) IsPlatform() bool {
	return s.OrganizationID == PlatformOrganizationID
}

// Platform returns a scope for the platform organization with the same actor
func (s OrgScope) Platform() OrgScope {
	return OrgScope{OrganizationID: PlatformOrganizationID, ActorID: s.ActorID}
}

// ActorPtr returns the actor id as a pointer, nil when unset
func (s OrgScope) ActorPtr() *uuid.UUID {
	if s.ActorID == uuid.Nil {
		return nil
	}
	id := s.ActorID
	return &id
}

// RequireOrganization rejects the nil organization id
func RequireOrganization(organizationID uuid.UUID) error {
	if organizationID == uuid.Nil {
		return ErrOrganizationRequired
	}
	return nil
}

// CheckPayloadOrganization rejects a payload that names a different organization than the scope
func CheckPayloadOrganization(scope OrgScope, payloadOrg *uuid.UUID) error {
	if payloadOrg == nil || *payloadOrg == uuid.Nil {
		return nil
	}
	if *payloadOrg != scope.OrganizationID {
		return ErrOrganizationMismatch
	}
	return nil
}

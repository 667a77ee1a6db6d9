package shared

import (
	"github.com/google/uuid"
)

// BaseAggregateRoot provides versioning and pending domain events
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// OrgAggregateRoot is an aggregate owned by one organization and classified by a smart code
type OrgAggregateRoot struct {
	BaseAggregateRoot
	OrganizationID uuid.UUID
	SmartCode      string
	CreatedBy      *uuid.UUID
}

// NewOrgAggregateRoot creates an aggregate root for the scope's organization
func NewOrgAggregateRoot(scope OrgScope, smartCode string) OrgAggregateRoot {
	return OrgAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		OrganizationID:    scope.OrganizationID,
		SmartCode:         smartCode,
		CreatedBy:         scope.ActorPtr(),
	}
}

// BelongsTo reports whether the aggregate is owned by organizationID
func (a *OrgAggregateRoot) BelongsTo(organizationID uuid.UUID) bool {
	return a.OrganizationID == organizationID
}

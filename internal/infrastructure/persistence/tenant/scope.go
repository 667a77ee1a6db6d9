// Package tenant provides organization scoping for GORM.
//
// Every business table carries organization_id. Repositories apply OrganizationScope
// explicitly; OrgCallback is a safety net that adds the same filter from the request
// context when a statement against an organization-owned model lacks one.
//
// Usage:
//
//	odb := tenant.NewOrgDB(gormDB)
//	odb.For(ctx, scope.OrganizationID).Find(&entities) // WHERE organization_id = 'xxx'
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

// Column is the organization column every scoped table carries
const Column = "organization_id"

// ErrInvalidOrganizationID is returned when the context carries a malformed organization id
var ErrInvalidOrganizationID = errors.New("invalid organization_id format")

// OrganizationScope filters a query to one organization
func OrganizationScope(organizationID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(Column+" = ?", organizationID)
	}
}

// OrganizationsScope filters a query to a set of organizations. Only identity lookups,
// which read the platform registry alongside a tenant, use it.
func OrganizationsScope(organizationIDs ...uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(Column+" IN ?", organizationIDs)
	}
}

// OrgDB wraps a GORM DB with organization scoping
type OrgDB struct {
	db *gorm.DB
}

// NewOrgDB creates an OrgDB
func NewOrgDB(db *gorm.DB) *OrgDB {
	return &OrgDB{db: db}
}

// DB returns the underlying GORM DB without scoping
func (o *OrgDB) DB() *gorm.DB {
	return o.db
}

// For returns a DB scoped to organizationID. The nil id yields a DB that fails on execution.
func (o *OrgDB) For(ctx context.Context, organizationID uuid.UUID) *gorm.DB {
	db := o.db.WithContext(ctx)
	if organizationID == uuid.Nil {
		_ = db.AddError(shared.ErrOrganizationRequired)
		return db
	}
	return db.Scopes(OrganizationScope(organizationID))
}

// WithContext returns a DB scoped to the organization carried by ctx
func (o *OrgDB) WithContext(ctx context.Context) *gorm.DB {
	raw := logger.GetOrganizationID(ctx)
	if raw == "" {
		db := o.db.WithContext(ctx)
		_ = db.AddError(shared.ErrOrganizationRequired)
		return db
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		db := o.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidOrganizationID)
		return db
	}
	return o.For(ctx, id)
}

// Package organization holds the tenant boundary records.
package organization

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidOrganization   = "INVALID_ORGANIZATION"
	CodeOrganizationNotFound  = "ORGANIZATION_NOT_FOUND"
	CodeDuplicateOrganization = "DUPLICATE_ORGANIZATION"

	SettingsKeyApps = "apps"
)

// Status represents the status of an organization
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusSuspended
}

// Organization is a tenant
type Organization struct {
	shared.BaseAggregateRoot
	Name      string
	Code      string
	Status    Status
	Settings  map[string]any
	SmartCode string
}

// NewOrganization validates and creates an active organization
func NewOrganization(name, code, smartCode string, settings map[string]any) (*Organization, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" {
		return nil, shared.NewValidationError(CodeInvalidOrganization, "organization name is required")
	}
	if code == "" {
		return nil, shared.NewValidationError(CodeInvalidOrganization, "organization_code is required")
	}
	if strings.TrimSpace(smartCode) == "" {
		return nil, shared.NewValidationError(CodeInvalidOrganization, "smart_code is required")
	}
	return &Organization{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Code:              code,
		Status:            StatusActive,
		Settings:          settings,
		SmartCode:         smartCode,
	}, nil
}

// Apps lists the applications enabled through settings.apps
func (o *Organization) Apps() []string {
	raw, ok := o.Settings[SettingsKeyApps]
	if !ok {
		return []string{}
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		apps := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				apps = append(apps, s)
			}
		}
		return apps
	}
	return []string{}
}

// Rename changes the display name
func (o *Organization) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError(CodeInvalidOrganization, "organization name is required")
	}
	o.Name = name
	o.touch()
	return nil
}

// UpdateSettings overlays values onto settings; nil values remove keys
func (o *Organization) UpdateSettings(values map[string]any) {
	if o.Settings == nil {
		o.Settings = make(map[string]any, len(values))
	}
	for k, v := range values {
		if v == nil {
			delete(o.Settings, k)
			continue
		}
		o.Settings[k] = v
	}
	o.touch()
}

// SetStatus changes the status
func (o *Organization) SetStatus(status Status) error {
	if !status.IsValid() {
		return shared.NewValidationError(CodeInvalidOrganization, "invalid status %q", status)
	}
	o.Status = status
	o.touch()
	return nil
}

func (o *Organization) touch() {
	o.UpdatedAt = time.Now().UTC()
	o.IncrementVersion()
}

// NotFound builds the standard not-found error for id
func NotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeOrganizationNotFound, "organization %s not found", id)
}

// ErrDuplicate is returned when the organization code is taken
var ErrDuplicate = shared.NewConflictError(CodeDuplicateOrganization, "organization_code is already in use")

// Repository persists organizations
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Organization, error)
	FindByCode(ctx context.Context, code string) (*Organization, error)
	Create(ctx context.Context, o *Organization) error
	Update(ctx context.Context, o *Organization) error
	List(ctx context.Context, page shared.Page) ([]*Organization, int64, error)
}

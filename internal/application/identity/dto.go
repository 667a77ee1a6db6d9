package identity

import (
	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/entity"
)

// EnsureActorInput identifies an authenticated subject
type EnsureActorInput struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Name    string `json:"name,omitempty" validate:"max=255"`
	Email   string `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

// ActorDTO is the platform user entity behind an auth subject
type ActorDTO struct {
	ID          uuid.UUID `json:"id"`
	Subject     string    `json:"subject"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	IsNew       bool      `json:"is_new"`
}

func toActorDTO(e *entity.Entity, isNew bool) *ActorDTO {
	dto := &ActorDTO{ID: e.ID, Subject: e.EntityCode, DisplayName: e.EntityName, IsNew: isNew}
	if v, ok := e.Metadata[metadataDisplayName].(string); ok && v != "" {
		dto.DisplayName = v
	}
	if v, ok := e.Metadata[metadataEmail].(string); ok {
		dto.Email = v
	}
	return dto
}

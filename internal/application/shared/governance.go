package shared

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

// Govern validates code for the organization and logs advisory warnings
func Govern(ctx context.Context, governor *governance.Governor, organizationID uuid.UUID, code string) (governance.Classification, error) {
	c, err := governor.Validate(organizationID, code)
	if err != nil {
		return governance.Classification{}, err
	}
	for _, w := range c.Warnings {
		logger.L(ctx).Warn("Smart code accepted in advisory mode",
			zap.String("smart_code", code),
			zap.String("warning", w),
		)
	}
	return c, nil
}

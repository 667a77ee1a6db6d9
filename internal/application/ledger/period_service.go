package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

// PeriodService opens and closes fiscal periods
type PeriodService struct {
	uow    appshared.UnitOfWork
	repos  appshared.Repositories
	logger *zap.Logger
}

// NewPeriodService creates a new period service
func NewPeriodService(uow appshared.UnitOfWork, repos appshared.Repositories, logger *zap.Logger) *PeriodService {
	return &PeriodService{uow: uow, repos: repos, logger: logger}
}

// Get returns the period state; a period never closed reports OPEN
func (s *PeriodService) Get(ctx context.Context, scope shared.OrgScope, in PeriodInput) (*PeriodDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.PeriodCode)
	if err := ledger.ValidatePeriodCode(code); err != nil {
		return nil, err
	}
	p, err := s.repos.Periods().Find(ctx, scope.OrganizationID, code)
	if shared.KindOf(err) == shared.KindNotFound {
		return &PeriodDTO{PeriodCode: code, Status: string(ledger.PeriodOpen)}, nil
	}
	if err != nil {
		return nil, err
	}
	dto := ToPeriodDTO(p)
	return &dto, nil
}

// List returns every period with stored state
func (s *PeriodService) List(ctx context.Context, scope shared.OrgScope) ([]PeriodDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	periods, err := s.repos.Periods().List(ctx, scope.OrganizationID)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, ToPeriodDTO(p))
	}
	return out, nil
}

// Close blocks postings into the period
func (s *PeriodService) Close(ctx context.Context, scope shared.OrgScope, in PeriodInput) (*PeriodDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "close_period")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrFiscalPeriod, in.PeriodCode)

	return s.change(ctx, scope, in, func(p *ledger.FiscalPeriod) error {
		return p.Close(scope.ActorPtr())
	})
}

// Reopen allows postings into the period again
func (s *PeriodService) Reopen(ctx context.Context, scope shared.OrgScope, in PeriodInput) (*PeriodDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reopen_period")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrFiscalPeriod, in.PeriodCode)

	return s.change(ctx, scope, in, func(p *ledger.FiscalPeriod) error {
		return p.Reopen()
	})
}

func (s *PeriodService) change(ctx context.Context, scope shared.OrgScope, in PeriodInput, apply func(*ledger.FiscalPeriod) error) (*PeriodDTO, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.PeriodCode)
	var out PeriodDTO
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		if err := repos.Periods().Lock(ctx, scope.OrganizationID, code, true); err != nil {
			return err
		}
		p, err := repos.Periods().Find(ctx, scope.OrganizationID, code)
		if shared.KindOf(err) == shared.KindNotFound {
			p, err = ledger.NewFiscalPeriod(scope.OrganizationID, code)
		}
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		if err := repos.Periods().Save(ctx, p); err != nil {
			return err
		}
		out = ToPeriodDTO(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Fiscal period changed",
		zap.String("organization_id", scope.OrganizationID.String()),
		zap.String("period_code", out.PeriodCode),
		zap.String("status", out.Status),
	)
	return &out, nil
}

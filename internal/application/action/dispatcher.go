package action

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	entityapp "github.com/ledgerbase/backend/internal/application/entity"
	ledgerapp "github.com/ledgerbase/backend/internal/application/ledger"
	relapp "github.com/ledgerbase/backend/internal/application/relationship"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

// MembershipChecker decides whether an actor may act in an organization
type MembershipChecker interface {
	CanAccess(ctx context.Context, actorID, organizationID uuid.UUID) (bool, error)
}

// Services are the application services behind the actions. Access may be nil
// when membership is enforced elsewhere.
type Services struct {
	Entities      *entityapp.EntityService
	Transactions  *ledgerapp.TransactionService
	Periods       *ledgerapp.PeriodService
	Relationships *relapp.RelationshipService
	Access        MembershipChecker
}

// Dispatcher routes envelopes to application services
type Dispatcher struct {
	svc      Services
	validate *validator.Validate
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over svc
func NewDispatcher(svc Services, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, validate: NewValidator(), logger: logger}
}

// organizationRef is accepted inside payloads and must agree with the envelope
type organizationRef struct {
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

type entityCreatePayload struct {
	entityapp.CreateInput
	organizationRef
}

type entityReadPayload struct {
	entityapp.ReadInput
	organizationRef
}

type entityUpdatePayload struct {
	entityapp.UpdateInput
	organizationRef
}

type entityDeletePayload struct {
	entityapp.DeleteInput
	organizationRef
}

type entityQueryPayload struct {
	entityapp.QueryInput
	organizationRef
}

type transactionHeader struct {
	ledger.Header
	organizationRef
}

type transactionCreatePayload struct {
	Transaction transactionHeader  `json:"transaction"`
	Lines       []ledger.LineInput `json:"lines"`
}

type transactionReadPayload struct {
	ledgerapp.ReadInput
	organizationRef
}

type transactionQueryPayload struct {
	Filters ledgerapp.QueryFilters `json:"filters"`
	organizationRef
}

type transactionReversePayload struct {
	ledgerapp.ReverseInput
	organizationRef
}

type trialBalancePayload struct {
	ledgerapp.TrialBalanceInput
	organizationRef
}

type periodPayload struct {
	PeriodCode string `json:"period_code,omitempty" validate:"omitempty,len=7"`
	organizationRef
}

// Entity runs CREATE, READ, UPDATE, DELETE or QUERY on entities
func (d *Dispatcher) Entity(ctx context.Context, req EntityRequest) Result {
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	ctx, scope, err := d.admit(ctx, req.ActorID, req.OrganizationID, &req)
	if err != nil {
		return d.fail(ctx, "entity", action, err)
	}

	var data any
	switch action {
	case "CREATE":
		var p entityCreatePayload
		if err = d.payload(req.EntityPayload, &p, scope, &p.organizationRef, func() error {
			return mergeEntityType(&p.EntityType, req.EntityType)
		}); err == nil {
			data, err = d.svc.Entities.Create(ctx, scope, p.CreateInput)
		}
	case "READ":
		var p entityReadPayload
		if err = d.payload(req.EntityPayload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Entities.Read(ctx, scope, p.ReadInput)
		}
	case "UPDATE":
		var p entityUpdatePayload
		if err = d.payload(req.EntityPayload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Entities.Update(ctx, scope, p.UpdateInput)
		}
	case "DELETE":
		var p entityDeletePayload
		if err = d.payload(req.EntityPayload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Entities.Delete(ctx, scope, p.DeleteInput)
		}
	case "QUERY":
		var p entityQueryPayload
		if err = d.payload(req.EntityPayload, &p, scope, &p.organizationRef, func() error {
			return mergeEntityType(&p.EntityType, req.EntityType)
		}); err == nil {
			data, err = d.svc.Entities.Query(ctx, scope, p.QueryInput)
		}
	default:
		err = unsupported("entity", req.Action)
	}
	if err != nil {
		return d.fail(ctx, "entity", action, err)
	}
	return Ok(data)
}

// Transaction runs CREATE, READ, QUERY, REVERSE or TRIAL_BALANCE on the ledger
func (d *Dispatcher) Transaction(ctx context.Context, req Request) Result {
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	ctx, scope, err := d.admit(ctx, req.ActorID, req.OrganizationID, &req)
	if err != nil {
		return d.fail(ctx, "transaction", action, err)
	}

	var data any
	switch action {
	case "CREATE":
		var p transactionCreatePayload
		if err = d.payload(req.Payload, &p, scope, &p.Transaction.organizationRef, nil); err == nil {
			data, err = d.svc.Transactions.Create(ctx, scope, ledgerapp.CreateInput{
				Transaction: p.Transaction.Header,
				Lines:       p.Lines,
			})
		}
	case "READ":
		var p transactionReadPayload
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Transactions.Read(ctx, scope, p.ReadInput)
		}
	case "QUERY":
		var p transactionQueryPayload
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Transactions.Query(ctx, scope, p.Filters)
		}
	case "REVERSE":
		var p transactionReversePayload
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Transactions.Reverse(ctx, scope, p.ReverseInput)
		}
	case "TRIAL_BALANCE":
		var p trialBalancePayload
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Transactions.TrialBalance(ctx, scope, p.TrialBalanceInput)
		}
	default:
		err = unsupported("transaction", req.Action)
	}
	if err != nil {
		return d.fail(ctx, "transaction", action, err)
	}
	return Ok(data)
}

// Relationship runs LINK, UNLINK, QUERY or SET_STATUS on the relationship graph
func (d *Dispatcher) Relationship(ctx context.Context, req Request) Result {
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	ctx, scope, err := d.admit(ctx, req.ActorID, req.OrganizationID, &req)
	if err != nil {
		return d.fail(ctx, "relationship", action, err)
	}

	var data any
	switch action {
	case "LINK":
		var p struct {
			relapp.LinkInput
			organizationRef
		}
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Relationships.Link(ctx, scope, p.LinkInput)
		}
	case "UNLINK":
		var p struct {
			relapp.UnlinkInput
			organizationRef
		}
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			if err = d.svc.Relationships.Unlink(ctx, scope, p.UnlinkInput); err == nil {
				data = map[string]bool{"unlinked": true}
			}
		}
	case "QUERY":
		var p struct {
			relapp.QueryInput
			organizationRef
		}
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Relationships.Query(ctx, scope, p.QueryInput)
		}
	case "SET_STATUS":
		var p struct {
			relapp.StatusInput
			organizationRef
		}
		if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err == nil {
			data, err = d.svc.Relationships.SetStatus(ctx, scope, p.StatusInput)
		}
	default:
		err = unsupported("relationship", req.Action)
	}
	if err != nil {
		return d.fail(ctx, "relationship", action, err)
	}
	return Ok(data)
}

// Period runs GET, LIST, CLOSE or REOPEN on fiscal periods
func (d *Dispatcher) Period(ctx context.Context, req Request) Result {
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	ctx, scope, err := d.admit(ctx, req.ActorID, req.OrganizationID, &req)
	if err != nil {
		return d.fail(ctx, "period", action, err)
	}

	switch action {
	case "GET", "LIST", "CLOSE", "REOPEN":
	default:
		return d.fail(ctx, "period", action, unsupported("period", req.Action))
	}
	var p periodPayload
	if err = d.payload(req.Payload, &p, scope, &p.organizationRef, nil); err != nil {
		return d.fail(ctx, "period", action, err)
	}
	in := ledgerapp.PeriodInput{PeriodCode: p.PeriodCode}
	if action != "LIST" && p.PeriodCode == "" {
		return d.fail(ctx, "period", action, shared.NewValidationError(CodeInvalidPayload, "period_code is required"))
	}

	var data any
	switch action {
	case "GET":
		data, err = d.svc.Periods.Get(ctx, scope, in)
	case "LIST":
		data, err = d.svc.Periods.List(ctx, scope)
	case "CLOSE":
		data, err = d.svc.Periods.Close(ctx, scope, in)
	case "REOPEN":
		data, err = d.svc.Periods.Reopen(ctx, scope, in)
	}
	if err != nil {
		return d.fail(ctx, "period", action, err)
	}
	return Ok(data)
}

// admit validates the envelope, builds the scope and checks membership
func (d *Dispatcher) admit(ctx context.Context, actorID, organizationID uuid.UUID, envelope any) (context.Context, shared.OrgScope, error) {
	if err := d.validate.Struct(envelope); err != nil {
		return ctx, shared.OrgScope{}, validationError(CodeInvalidEnvelope, err)
	}
	scope, err := shared.NewOrgScope(organizationID, actorID)
	if err != nil {
		return ctx, shared.OrgScope{}, err
	}
	ctx = logger.WithOrganizationID(ctx, organizationID.String())
	ctx = logger.WithActorID(ctx, actorID.String())

	if d.svc.Access != nil {
		ok, err := d.svc.Access.CanAccess(ctx, actorID, organizationID)
		if err != nil {
			return ctx, shared.OrgScope{}, err
		}
		if !ok {
			return ctx, shared.OrgScope{}, shared.ErrNotAMember
		}
	}
	return ctx, scope, nil
}

// payload decodes raw into dst, checks the payload organization, applies fill and validates
func (d *Dispatcher) payload(raw []byte, dst any, scope shared.OrgScope, ref *organizationRef, fill func() error) error {
	if err := DecodeStrict(raw, dst); err != nil {
		return err
	}
	if err := shared.CheckPayloadOrganization(scope, ref.OrganizationID); err != nil {
		return err
	}
	if fill != nil {
		if err := fill(); err != nil {
			return err
		}
	}
	if err := d.validate.Struct(dst); err != nil {
		return validationError(CodeInvalidPayload, err)
	}
	return nil
}

// fail converts err into a failed result. Errors that are not domain errors
// are logged and reported as InternalError without their details.
func (d *Dispatcher) fail(ctx context.Context, resource, action string, err error) Result {
	var de *shared.DomainError
	if errors.As(err, &de) {
		copied := *de
		if copied.Kind == shared.KindInternal {
			logger.WithLogger(ctx, d.logger).Error("Action failed", zap.String("resource", resource), zap.String("action", action), zap.Error(err))
		}
		return Fail(&copied)
	}
	logger.WithLogger(ctx, d.logger).Error("Action failed", zap.String("resource", resource), zap.String("action", action), zap.Error(err))
	return Fail(shared.NewDomainError(shared.KindInternal, CodeInternal, "internal error"))
}

// mergeEntityType fills the payload entity type from the envelope; both must agree when set
func mergeEntityType(payload *string, envelope string) error {
	envelope = strings.TrimSpace(envelope)
	switch {
	case envelope == "":
		return nil
	case strings.TrimSpace(*payload) == "":
		*payload = envelope
		return nil
	case !strings.EqualFold(strings.TrimSpace(*payload), envelope):
		return shared.NewValidationError(CodeInvalidPayload, "entity_type %q does not match envelope entity_type %q", *payload, envelope)
	}
	return nil
}

func unsupported(resource, action string) error {
	return shared.NewValidationError(CodeUnsupportedAction, "unsupported %s action %q", resource, action)
}

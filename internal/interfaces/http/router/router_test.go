package router

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/ledgerbase/backend/internal/application/action"
	entityapp "github.com/ledgerbase/backend/internal/application/entity"
	identityapp "github.com/ledgerbase/backend/internal/application/identity"
	ledgerapp "github.com/ledgerbase/backend/internal/application/ledger"
	orgapp "github.com/ledgerbase/backend/internal/application/organization"
	relapp "github.com/ledgerbase/backend/internal/application/relationship"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/infrastructure/auth"
	"github.com/ledgerbase/backend/internal/infrastructure/config"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/interfaces/http/handler"
	"github.com/ledgerbase/backend/internal/interfaces/http/middleware"
	"github.com/ledgerbase/backend/internal/testutil"
)

const journalCode = "HERA.FIN.GL.TXN.JOURNAL.v1"

type okPinger struct{}

func (okPinger) Ping() error { return nil }

type stack struct {
	engine   *gin.Engine
	verifier *auth.Verifier
	orgs     *orgapp.OrganizationService
	ids      *identityapp.IdentityService
	reader   *sdkmetric.ManualReader
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	uow := persistence.NewGormUnitOfWork(db)
	repos := persistence.NewRepositories(db)

	registry := governance.NewRegistry()
	require.NoError(t, registry.Register(governance.SystemEntries()...))
	require.NoError(t, registry.Register(governance.Entry{Code: journalCode, Kind: governance.KindLedgerPosting}))
	governor := governance.NewGovernor(registry, governance.ModeStrict)

	ids := identityapp.NewIdentityService(uow, repos, nil, 0, zap.NewNop())
	orgs := orgapp.NewOrganizationService(uow, repos, governor, nil, zap.NewNop())
	require.NoError(t, orgs.EnsurePlatform(context.Background()))
	dispatcher := action.NewDispatcher(action.Services{
		Entities:      entityapp.NewEntityService(uow, repos, governor, entity.DefaultResolverConfig(), 0, zap.NewNop()),
		Transactions:  ledgerapp.NewTransactionService(uow, repos, governor, ledgerapp.Config{}, zap.NewNop()),
		Periods:       ledgerapp.NewPeriodService(uow, repos, zap.NewNop()),
		Relationships: relapp.NewRelationshipService(uow, repos, governor, nil, zap.NewNop()),
		Access:        ids,
	}, zap.NewNop())

	verifier := auth.NewVerifier(config.JWTConfig{Secret: "router-test-secret-at-least-32-chars", Issuer: "ledgerbase"})
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("router-test")

	engine, err := New(Config{ServiceName: "ledgerbase-test", MaxBodySize: 4096, Meter: meter},
		Handlers{
			Actions:       handler.NewActionHandler(dispatcher),
			Identity:      handler.NewIdentityHandler(ids),
			Organizations: handler.NewOrganizationHandler(orgs, ids),
			Health:        handler.NewHealthHandler("test", map[string]handler.Pinger{"database": okPinger{}}),
		},
		middleware.AuthConfig{Verifier: verifier, Actors: ids},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return &stack{engine: engine, verifier: verifier, orgs: orgs, ids: ids, reader: reader}
}

func (s *stack) bearer(t *testing.T, subject string) map[string]string {
	t.Helper()
	token, err := s.verifier.Issue(subject, subject, subject+"@example.com", time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"), WithGroupMiddleware(func(c *gin.Context) {
		c.Header("X-Group", "api")
	}))
	assert.Equal(t, "v2", r.apiVersion)

	r.Register(registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	}))
	r.Setup()

	w := testutil.DoJSON(t, engine, http.MethodGet, "/api/v2/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "api", w.Header().Get("X-Group"))
}

type registrarFunc func(rg *gin.RouterGroup)

func (f registrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

func TestNew_HealthIsPublic(t *testing.T) {
	s := newStack(t)
	w := testutil.DoJSON(t, s.engine, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "healthy", testutil.DecodeJSON(t, w)["status"])
}

func TestNew_RequiresBearerToken(t *testing.T) {
	s := newStack(t)
	w := testutil.DoJSON(t, s.engine, http.MethodGet, "/api/v1/identity/introspect", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = testutil.DoJSON(t, s.engine, http.MethodGet, "/api/v1/identity/introspect", nil,
		map[string]string{"Authorization": "Bearer not.a.token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", testutil.DecodeJSON(t, w)["error"].(map[string]any)["code"])
}

func TestNew_NoRoute(t *testing.T) {
	s := newStack(t)
	w := testutil.DoJSON(t, s.engine, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := testutil.DecodeJSON(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "ROUTE_NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestNew_BodyLimit(t *testing.T) {
	s := newStack(t)
	big := `{"action":"create","payload":{"memo":"` + strings.Repeat("a", 8192) + `"}}`
	w := testutil.DoJSON(t, s.engine, http.MethodPost, "/api/v1/transactions", big, s.bearer(t, "jane"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNew_LedgerFlow(t *testing.T) {
	s := newStack(t)
	headers := s.bearer(t, "jane")

	w := testutil.DoJSON(t, s.engine, http.MethodPost, "/api/v1/organizations",
		map[string]any{"name": "Acme", "organization_code": "ACME"}, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orgID := testutil.DecodeJSON(t, w)["data"].(map[string]any)["id"].(string)

	post := func(lines []map[string]any, key string) (int, map[string]any) {
		w := testutil.DoJSON(t, s.engine, http.MethodPost, "/api/v1/transactions", map[string]any{
			"action":          "create",
			"organization_id": orgID,
			"payload": map[string]any{
				"transaction": map[string]any{
					"transaction_type": "journal_entry",
					"transaction_date": "2024-05-10T00:00:00Z",
					"smart_code":       journalCode,
					"idempotency_key":  key,
				},
				"lines": lines,
			},
		}, headers)
		return w.Code, testutil.DecodeJSON(t, w)
	}

	status, body := post([]map[string]any{
		{"side": "DR", "account": "1000", "line_amount": "100.00"},
		{"side": "CR", "account": "4000", "line_amount": "100.00"},
	}, "JE-1")
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "POSTED", body["data"].(map[string]any)["transaction"].(map[string]any)["transaction_status"])

	status, body = post([]map[string]any{
		{"side": "DR", "account": "1000", "line_amount": "100.00"},
		{"side": "CR", "account": "4000", "line_amount": "90.00"},
	}, "JE-2")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ImbalanceError", body["error"].(map[string]any)["kind"])

	w = testutil.DoJSON(t, s.engine, http.MethodPost, "/api/v1/transactions", map[string]any{
		"action": "create", "actor_id": uuid.New(), "organization_id": orgID, "payload": map[string]any{},
	}, headers)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNew_RecordsMetrics(t *testing.T) {
	s := newStack(t)
	testutil.DoJSON(t, s.engine, http.MethodGet, "/health", nil, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, s.reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["http_server_request_total"])
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identityapp "github.com/ledgerbase/backend/internal/application/identity"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/auth"
	"github.com/ledgerbase/backend/internal/infrastructure/config"
	"github.com/ledgerbase/backend/internal/testutil"
)

type stubActors struct {
	ids map[string]uuid.UUID
	err error
}

func (s *stubActors) EnsureActor(_ context.Context, in identityapp.EnsureActorInput) (*identityapp.ActorDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	id, ok := s.ids[in.Subject]
	if !ok {
		id = uuid.New()
		s.ids[in.Subject] = id
	}
	return &identityapp.ActorDTO{ID: id, Subject: in.Subject, DisplayName: in.Name, Email: in.Email}, nil
}

func newAuthRouter(t *testing.T, actors ActorResolver) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	verifier := auth.NewVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars!", Issuer: "ledgerbase"})
	router := gin.New()
	router.Use(RequestID(), Authenticate(AuthConfig{Verifier: verifier, Actors: actors, SkipPaths: []string{"/health"}}))
	router.GET("/me", func(c *gin.Context) {
		id, ok := GetActorID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"actor_id": id, "subject": GetClaims(c).Subject})
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, verifier
}

func TestAuthenticate(t *testing.T) {
	actors := &stubActors{ids: map[string]uuid.UUID{"auth0|42": testutil.TestActorID()}}
	router, verifier := newAuthRouter(t, actors)

	t.Run("valid token resolves the actor", func(t *testing.T) {
		token, err := verifier.Issue("auth0|42", "Ada", "ada@example.com", time.Hour)
		require.NoError(t, err)

		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, w.Code)
		body := testutil.DecodeJSON(t, w)
		assert.Equal(t, testutil.TestActorID().String(), body["actor_id"])
		assert.Equal(t, "auth0|42", body["subject"])
	})

	t.Run("missing header", func(t *testing.T) {
		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		errBody := testutil.DecodeJSON(t, w)["error"].(map[string]any)
		assert.Equal(t, "UNAUTHORIZED", errBody["code"])
		assert.Equal(t, "AuthenticationError", errBody["kind"])
		assert.NotEmpty(t, errBody["request_id"])
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := verifier.Issue("auth0|42", "", "", -time.Minute)
		require.NoError(t, err)
		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "TOKEN_EXPIRED", testutil.DecodeJSON(t, w)["error"].(map[string]any)["code"])
	})

	t.Run("garbage token", func(t *testing.T) {
		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer not.a.jwt"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_TOKEN", testutil.DecodeJSON(t, w)["error"].(map[string]any)["code"])
	})

	t.Run("skip paths are public", func(t *testing.T) {
		w := testutil.DoJSON(t, router, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthenticate_ResolverFailure(t *testing.T) {
	t.Run("domain errors keep their status", func(t *testing.T) {
		router, verifier := newAuthRouter(t, &stubActors{err: shared.NewValidationError("INVALID_ACTOR", "subject is required")})
		token, err := verifier.Issue("sub", "", "", time.Hour)
		require.NoError(t, err)

		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown errors are masked", func(t *testing.T) {
		router, verifier := newAuthRouter(t, &stubActors{err: errors.New("pq: connection refused")})
		token, err := verifier.Issue("sub", "", "", time.Hour)
		require.NoError(t, err)

		w := testutil.DoJSON(t, router, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

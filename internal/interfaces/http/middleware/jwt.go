package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	identityapp "github.com/ledgerbase/backend/internal/application/identity"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/auth"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/interfaces/http/dto"
)

// Context keys set by Authenticate
const (
	ClaimsKey  = "auth_claims"
	ActorIDKey = "actor_id"
)

// KindUnauthenticated is reported when no valid bearer token is presented
const KindUnauthenticated shared.ErrorKind = "AuthenticationError"

// ActorResolver maps an auth subject to its actor entity
type ActorResolver interface {
	EnsureActor(ctx context.Context, in identityapp.EnsureActorInput) (*identityapp.ActorDTO, error)
}

// AuthConfig holds configuration for Authenticate
type AuthConfig struct {
	Verifier  *auth.Verifier
	Actors    ActorResolver
	SkipPaths []string
	Logger    *zap.Logger
}

// Authenticate verifies the bearer token and resolves its subject to an actor entity
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, dto.ErrCodeUnauthorized, "missing bearer token")
			return
		}
		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			logger.WithLogger(c.Request.Context(), log).Debug("Bearer token rejected",
				zap.String("path", c.Request.URL.Path), zap.Error(err))
			if errors.Is(err, auth.ErrExpiredToken) {
				unauthorized(c, dto.ErrCodeTokenExpired, "token has expired")
				return
			}
			unauthorized(c, dto.ErrCodeTokenInvalid, "invalid token")
			return
		}

		actor, err := cfg.Actors.EnsureActor(c.Request.Context(), identityapp.EnsureActorInput{
			Subject: claims.Subject,
			Name:    claims.Name,
			Email:   claims.Email,
		})
		if err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) && de.Kind != shared.KindInternal {
				c.AbortWithStatusJSON(dto.HTTPStatus(de.Kind), dto.FromDomainError(de, GetRequestID(c)))
				return
			}
			logger.WithLogger(c.Request.Context(), log).Error("Failed to resolve actor",
				zap.String("subject", claims.Subject), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				shared.KindInternal, dto.ErrCodeInternal, "internal error", GetRequestID(c)))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(ActorIDKey, actor.ID)
		c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), actor.ID.String()))
		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(KindUnauthenticated, code, message, GetRequestID(c)))
}

// GetClaims returns the verified token claims, nil on unauthenticated routes
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetActorID returns the authenticated actor entity id
func GetActorID(c *gin.Context) (uuid.UUID, bool) {
	if v, ok := c.Get(ActorIDKey); ok {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects bodies larger than maxBytes; a non-positive limit disables the check
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
				shared.KindValidation, dto.ErrCodeRequestTooLarge,
				"request body exceeds maximum allowed size", GetRequestID(c),
			))
			return
		}

		// streamed bodies without a Content-Length are capped while reading
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

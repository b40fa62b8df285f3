// Package middleware holds the gin middlewares for the API surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/resona-io/resona/internal/infrastructure/auth"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/utils"
)

// Context keys set by the auth middleware.
const (
	ContextUserID  = "user_id"
	ContextIsAdmin = "is_admin"
)

// AuthMiddleware validates the bearer token and stores the caller identity in
// the request context.
type AuthMiddleware struct {
	jwtService *auth.JWTService
	logger     logger.Interface
}

func NewAuthMiddleware(jwtService *auth.JWTService, log logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, logger: log}
}

// RequireAuth rejects requests without a valid token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := m.jwtService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextIsAdmin, claims.Admin)
		c.Next()
	}
}

// RequireAdmin rejects authenticated callers without the admin flag. Must run
// after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsAdmin) {
			m.logger.Warnw("non-admin caller hit admin endpoint",
				"user_id", c.GetString(ContextUserID),
				"path", c.Request.URL.Path,
			)
			utils.ErrorResponse(c, http.StatusForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user ID from the context.
func CallerID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

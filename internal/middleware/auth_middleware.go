// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fedportal-service/internal/pkg/jwt"
	"fedportal-service/internal/pkg/response"
	identitysvc "fedportal-service/internal/service/identity"
)

const (
	ctxIdentity = "effective_identity"
	ctxJTI      = "jti"
)

type AuthMiddleware struct {
	verifier *jwt.Verifier
	resolver *identitysvc.Service
}

func NewAuthMiddleware(verifier *jwt.Verifier, resolver *identitysvc.Service) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		resolver: resolver,
	}
}

// Auth validates the bearer token and resolves the request's effective
// identity, including any impersonation the token's session carries.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid token claims", err)
			return
		}

		eff, err := m.resolver.Resolve(c.Request.Context(), principal, claims.ID)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "failed to resolve identity", err)
			return
		}

		c.Set(ctxIdentity, &eff)
		c.Set(ctxJTI, claims.ID)

		c.Next()
	}
}

// RequireAdmin gates a route group on administrative capability of the
// effective identity.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		eff, ok := GetIdentity(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		if !eff.IsAdmin() {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequirePermission gates a route on a capability of the effective role.
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		eff, ok := GetIdentity(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		if !eff.Can(permission) {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	// Websocket clients can't set headers from the browser
	return c.Query("token")
}

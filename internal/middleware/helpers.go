// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"fedportal-service/internal/domain/identity"
)

// GetIdentity gets the resolved effective identity from context
func GetIdentity(c *gin.Context) (*identity.EffectiveIdentity, bool) {
	v, exists := c.Get(ctxIdentity)
	if !exists {
		return nil, false
	}
	eff, ok := v.(*identity.EffectiveIdentity)
	return eff, ok
}

// MustGetIdentity gets the effective identity from context or panics
func MustGetIdentity(c *gin.Context) *identity.EffectiveIdentity {
	eff, ok := GetIdentity(c)
	if !ok {
		panic("effective identity not found in context")
	}
	return eff
}

// GetJTI gets the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// MustGetJTI gets the token id from context or panics
func MustGetJTI(c *gin.Context) string {
	jti, ok := GetJTI(c)
	if !ok {
		panic("jti not found in context")
	}
	return jti
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxIdentity)
	return exists
}

// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"fedportal-service/internal/domain/identity"
)

// Claims is what the authentication collaborator signs into its tokens.
// The portal only consumes these; it never issues tokens of its own.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the opaque resolved principal the
// rest of the portal works with. Fails on roles outside the closed set.
func (c *Claims) Principal() (identity.Principal, error) {
	role, err := identity.ParseRole(c.Role)
	if err != nil {
		return identity.Principal{}, err
	}
	return identity.Principal{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Role:        role,
		AvatarURL:   c.AvatarURL,
	}, nil
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}

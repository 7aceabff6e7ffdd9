// internal/domain/identity/entity.go
package identity

import "fmt"

// Role is the closed set of portal roles, ordered by privilege level.
type Role string

const (
	RoleGuest            Role = "guest"
	RoleAssistant        Role = "assistant"
	RoleSecretary        Role = "secretary"
	RoleSecretaryFederal Role = "secretary_federal"
	RoleSecretaryGeneral Role = "secretary_general"
	RoleAdmin            Role = "admin"
	RoleSuperAdmin       Role = "super_admin"
)

// roleRank encodes the privilege hierarchy. Higher wins.
var roleRank = map[Role]int{
	RoleGuest:            1,
	RoleAssistant:        2,
	RoleSecretary:        3,
	RoleSecretaryFederal: 4,
	RoleSecretaryGeneral: 5,
	RoleAdmin:            6,
	RoleSuperAdmin:       7,
}

var roleLabels = map[Role]string{
	RoleGuest:            "Guest",
	RoleAssistant:        "Assistant",
	RoleSecretary:        "Secretary",
	RoleSecretaryFederal: "Federal Secretary",
	RoleSecretaryGeneral: "General Secretary",
	RoleAdmin:            "Administrator",
	RoleSuperAdmin:       "Super Administrator",
}

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the numeric privilege level (0 for unknown roles).
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether the role meets the given minimum level.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Label returns the display name for the role.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// Principal is a resolved authenticated identity, produced by the external
// authentication collaborator. Immutable once issued.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleHierarchy(t *testing.T) {
	ordered := []Role{
		RoleGuest,
		RoleAssistant,
		RoleSecretary,
		RoleSecretaryFederal,
		RoleSecretaryGeneral,
		RoleAdmin,
		RoleSuperAdmin,
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank(),
			"%s should outrank %s", ordered[i], ordered[i-1])
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("secretary_federal")
	require.NoError(t, err)
	assert.Equal(t, RoleSecretaryFederal, role)

	_, err = ParseRole("ceo")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestSuperAdminWildcard(t *testing.T) {
	assert.True(t, RoleSuperAdmin.HasPermission(PermStatsViewAll))
	assert.True(t, RoleSuperAdmin.HasPermission(PermUsersManage))
	assert.True(t, RoleSuperAdmin.HasPermission("anything.at.all"))
}

func TestRestrictedScope(t *testing.T) {
	restricted := []Role{RoleGuest, RoleAssistant, RoleSecretary, RoleSecretaryFederal}
	for _, r := range restricted {
		assert.True(t, r.IsRestrictedScope(), "%s should be restricted", r)
	}

	unrestricted := []Role{RoleSecretaryGeneral, RoleAdmin, RoleSuperAdmin}
	for _, r := range unrestricted {
		assert.False(t, r.IsRestrictedScope(), "%s should not be restricted", r)
	}
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	assert.False(t, Role("intern").HasPermission(PermTemplatesRead))
	assert.True(t, Role("intern").IsRestrictedScope())
}

func TestCanManageRole(t *testing.T) {
	assert.True(t, RoleAdmin.CanManageRole(RoleSecretary))
	assert.True(t, RoleSuperAdmin.CanManageRole(RoleAdmin))

	// Equal rank never manages itself
	assert.False(t, RoleAdmin.CanManageRole(RoleAdmin))
	assert.False(t, RoleSecretary.CanManageRole(RoleSecretaryGeneral))
}

func TestAssignableRoles(t *testing.T) {
	assignable := RoleAdmin.AssignableRoles()
	assert.Len(t, assignable, 5)
	assert.NotContains(t, assignable, RoleAdmin)
	assert.NotContains(t, assignable, RoleSuperAdmin)

	assert.Empty(t, RoleGuest.AssignableRoles())
}

// internal/domain/identity/permissions.go
package identity

// Permission names, grouped by category. Membership tests go through the
// rolePermissions table instead of string checks scattered over call sites.
const (
	PermDocumentsCreate    = "documents.create"
	PermDocumentsReadAll   = "documents.read.all"
	PermDocumentsReadOwn   = "documents.read.own"
	PermDocumentsUpdateAll = "documents.update.all"
	PermDocumentsUpdateOwn = "documents.update.own"
	PermDocumentsDeleteAll = "documents.delete.all"
	PermDocumentsDeleteOwn = "documents.delete.own"
	PermUsersRead          = "users.read"
	PermUsersManage        = "users.manage"
	PermStatsViewAll       = "stats.view.all"
	PermStatsViewOwn       = "stats.view.own"
	PermStatsExport        = "stats.export"
	PermTemplatesRead      = "templates.read"
	PermTemplatesDownload  = "templates.download"
	PermTemplatesManage    = "templates.manage"
	PermSignaturesViewAll  = "signatures.view.all"
	PermSignaturesViewOwn  = "signatures.view.own"
	PermPresenceView       = "presence.view"
	PermSettingsView       = "settings.view"
)

// permWildcard grants everything; reserved for super_admin.
const permWildcard = "*"

var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {permWildcard},

	RoleAdmin: {
		PermDocumentsCreate, PermDocumentsReadAll, PermDocumentsUpdateAll, PermDocumentsDeleteAll,
		PermUsersRead, PermUsersManage,
		PermStatsViewAll, PermStatsExport,
		PermTemplatesRead, PermTemplatesDownload, PermTemplatesManage,
		PermSignaturesViewAll,
		PermPresenceView,
		PermSettingsView,
	},

	RoleSecretaryGeneral: {
		PermDocumentsCreate, PermDocumentsReadAll, PermDocumentsUpdateAll, PermDocumentsDeleteOwn,
		PermUsersRead,
		PermStatsViewAll, PermStatsExport,
		PermTemplatesRead, PermTemplatesDownload,
		PermSignaturesViewAll,
		PermPresenceView,
		PermSettingsView,
	},

	RoleSecretaryFederal: {
		PermDocumentsCreate, PermDocumentsReadOwn, PermDocumentsUpdateOwn, PermDocumentsDeleteOwn,
		PermUsersRead,
		PermStatsViewOwn,
		PermTemplatesRead, PermTemplatesDownload,
		PermSignaturesViewOwn,
	},

	RoleSecretary: {
		PermDocumentsCreate, PermDocumentsReadOwn, PermDocumentsUpdateOwn, PermDocumentsDeleteOwn,
		PermUsersRead,
		PermStatsViewOwn,
		PermTemplatesRead, PermTemplatesDownload,
		PermSignaturesViewOwn,
	},

	RoleAssistant: {
		PermDocumentsCreate, PermDocumentsReadOwn, PermDocumentsUpdateOwn,
		PermStatsViewOwn,
		PermTemplatesRead, PermTemplatesDownload,
		PermSignaturesViewOwn,
	},

	RoleGuest: {
		PermTemplatesRead,
		PermUsersRead,
	},
}

// HasPermission reports whether the role grants the named permission.
func (r Role) HasPermission(permission string) bool {
	perms, ok := rolePermissions[r]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permWildcard || p == permission {
			return true
		}
	}
	return false
}

// IsRestrictedScope classifies roles whose data visibility is limited to
// their own records: anything that cannot view all stats.
func (r Role) IsRestrictedScope() bool {
	return !r.HasPermission(PermStatsViewAll)
}

// Permissions returns the full permission list for the role.
func (r Role) Permissions() []string {
	return rolePermissions[r]
}

// CanManageRole reports whether a holder of r may promote or demote a
// holder of target. Strictly-greater rank required.
func (r Role) CanManageRole(target Role) bool {
	return roleRank[r] > roleRank[target]
}

// AssignableRoles lists roles a holder of r may assign to others.
func (r Role) AssignableRoles() []Role {
	out := make([]Role, 0, len(roleRank))
	for candidate, rank := range roleRank {
		if rank < roleRank[r] {
			out = append(out, candidate)
		}
	}
	return out
}

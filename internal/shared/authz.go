package shared

// Role groups report permissions.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// Report permissions.
const (
	PermReportsView    = "reports.view"
	PermReportsExport  = "reports.export"
	PermReportsRefresh = "reports.refresh"
)

var rolePermissions = map[Role][]string{
	RoleAdmin:   {PermReportsView, PermReportsExport, PermReportsRefresh},
	RoleManager: {PermReportsView, PermReportsExport},
	RoleViewer:  {PermReportsView},
}

// ParseRole maps stored role names, defaulting to viewer.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleViewer:
		return Role(raw)
	default:
		return RoleViewer
	}
}

// Permissions lists what a role may do.
func (r Role) Permissions() []string {
	return rolePermissions[r]
}

// Can reports whether the identity holds perm.
func (i Identity) Can(perm string) bool {
	for _, p := range rolePermissions[i.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

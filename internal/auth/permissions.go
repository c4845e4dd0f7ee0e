package auth

// Role is the access level carried by a token.
type Role string

// Role constants.
const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permission represents a named capability of the API.
type Permission string

// Permission constants.
const (
	PermQueryRead        Permission = "query:read"
	PermQueryWrite       Permission = "query:write"
	PermChangesWatch     Permission = "changes:watch"
	PermDatabaseMaintain Permission = "database:maintain"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleReader: {
		PermQueryRead,
		PermChangesWatch,
	},
	RoleWriter: {
		PermQueryRead,
		PermQueryWrite,
		PermChangesWatch,
	},
	RoleAdmin: {
		PermQueryRead,
		PermQueryWrite,
		PermChangesWatch,
		PermDatabaseMaintain,
	},
}

// HasPermission returns true if role has perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role, or nil for
// unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

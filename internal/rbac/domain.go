// Package rbac maps the admin/cashier roles onto the capabilities each API
// surface requires. Permissions are static; roles are resolved at login and
// carried in the session.
package rbac

// Role names stored on user records.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// Permission names gating API groups.
const (
	PermCatalogView   = "catalog.view"
	PermCatalogEdit   = "catalog.edit"
	PermInventoryEdit = "inventory.edit"
	PermSalesCreate   = "sales.create"
	PermSalesView     = "sales.view"
	PermSalesExport   = "sales.export"
	PermUsersView     = "users.view"
	PermUsersEdit     = "users.edit"
	PermJobsManage    = "jobs.manage"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermCatalogView, PermCatalogEdit,
		PermInventoryEdit,
		PermSalesCreate, PermSalesView, PermSalesExport,
		PermUsersView, PermUsersEdit,
		PermJobsManage,
	},
	RoleCashier: {
		PermCatalogView,
		PermSalesCreate, PermSalesView,
	},
}

// ValidRole reports whether the given role name is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// PermissionsForRole returns the capability set granted to a role.
func PermissionsForRole(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// RoleHas reports whether the role grants the permission.
func RoleHas(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

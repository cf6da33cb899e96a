package permissions

import "github.com/tacticalpanel/panel/internal/models"

// Role is the closed set of principal kinds: AdminRole, SubAdminRole or UserRole.
type Role interface {
	isRole()
}

// AdminRole may perform every action on every server.
type AdminRole struct{}

// SubAdminRole may perform only the actions granted per server by its parent admin.
type SubAdminRole struct {
	Grants models.ServerPermissions
}

// UserRole has no grants; access to owned servers is decided by the caller.
type UserRole struct{}

func (AdminRole) isRole()    {}
func (SubAdminRole) isRole() {}
func (UserRole) isRole()     {}

// RoleOf derives the role of a stored user. A sub-admin flag without a parent is treated
// as a regular user.
func RoleOf(user *models.User) Role {
	switch {
	case user == nil:
		return UserRole{}
	case user.IsAdmin:
		return AdminRole{}
	case user.IsSubAdmin && user.ParentAdminID != nil:
		return SubAdminRole{Grants: user.Grants()}
	default:
		return UserRole{}
	}
}

// Allows decides a single action for a role without touching the store.
func Allows(role Role, serverID, action string) bool {
	if !models.IsKnownAction(action) {
		return false
	}
	switch r := role.(type) {
	case AdminRole:
		return true
	case SubAdminRole:
		grant, ok := r.Grants[serverID]
		return ok && grant.Allows(action)
	default:
		return false
	}
}

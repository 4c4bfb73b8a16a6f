package auth

import "github.com/frahmantamala/timetrack-payroll/internal"

// PermissionChecker answers isAuthorized for every service. Admin implies all permissions.
type PermissionChecker struct{}

func NewPermissionChecker() *PermissionChecker {
	return &PermissionChecker{}
}

func (c *PermissionChecker) IsAuthorized(actor *internal.User, permission string) bool {
	if actor == nil {
		return false
	}
	return actor.HasPermission(internal.PermissionAdmin) || actor.HasPermission(permission)
}

func (c *PermissionChecker) HasAnyPermission(actor *internal.User, permissions ...string) bool {
	for _, p := range permissions {
		if c.IsAuthorized(actor, p) {
			return true
		}
	}
	return false
}

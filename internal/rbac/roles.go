package rbac

import "affiliate-blog/internal/authz"

// Role names stored in profiles.role and app_metadata.role.
// Keep these stable; they are part of the authorization contract.
const (
	RoleAdmin  = authz.DefaultAdminRole
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValid(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// Package rbac defines workspace-scoped roles and the action table.
package rbac

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionManage Action = "manage"
)

// Can reports whether a role permits an action inside its workspace.
// Creator-owns-resource checks are layered on top by the service: a
// resource's creator may always modify or delete their own resource even
// when Can(role, ActionManage) is false.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner, RoleAdmin:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionCreate
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps arbitrary input to a known role, defaulting to viewer.
// The owner role is never assigned through Normalize; it is derived from
// workspace ownership.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleMember, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Assignable reports whether a role may be granted to a member. Ownership
// transfers are not supported, so owner is excluded.
func Assignable(role string) bool {
	switch Role(role) {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

package auth

// Action constants for the access control gate.
// Each protected route is registered with exactly one action; roles are
// granted actions through DefaultRolePermissions.

// ObjectREST is the casbin object every gateway action is evaluated against.
const ObjectREST = "rest"

const (
	// ActionUserRead allows looking up a user by id or name.
	ActionUserRead = "user:read"

	// ActionPolicyListByUser allows listing the policies owned by a named user.
	ActionPolicyListByUser = "policy:list-by-user"

	// ActionPolicyReadUser allows resolving the user that owns a policy.
	ActionPolicyReadUser = "policy:read-user"
)

// DefaultRolePermissions is the declarative role to action table loaded into
// the enforcer at startup.
var DefaultRolePermissions = map[Role][]string{
	RoleAdmin: {
		ActionUserRead,
		ActionPolicyListByUser,
		ActionPolicyReadUser,
	},
	RoleUser: {
		ActionUserRead,
	},
}

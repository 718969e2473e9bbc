package auth

import "context"

// Role is the access level carried by a token. Values are copied verbatim
// from the user record resolved at grant time.
type Role string

const (
	// RoleUser may read user records.
	RoleUser Role = "user"
	// RoleAdmin may read user records and query policies.
	RoleAdmin Role = "admin"
)

// Principal captures the identity resolved from a verified bearer token.
type Principal struct {
	// SubjectID is the upstream user id the token was issued for.
	SubjectID string
	// Role is the role embedded in the token.
	Role Role
}

type principalContextKey struct{}

// SetPrincipal stores the authenticated principal on the context for downstream handlers.
func SetPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

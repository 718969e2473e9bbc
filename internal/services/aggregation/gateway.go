package aggregation

import (
	"context"
	"errors"
	"fmt"

	"github.com/koman-maciej/insurance/internal/models"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// UserProvider looks single users up, either in-process or through the
// internal user service.
type UserProvider interface {
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByName(ctx context.Context, name string) (models.User, error)
}

// PolicyProvider reads the full policy collection.
type PolicyProvider interface {
	ListPolicies(ctx context.Context) ([]models.Policy, error)
}

// ErrDanglingReference marks a not-found follow hop whose key came from a
// record that exists, such as a policy naming a client the user collection
// does not know. It is always joined with upstream.ErrNotFound.
var ErrDanglingReference = errors.New("dangling reference")

// Gateway joins users and policies.
type Gateway struct {
	users    UserProvider
	policies PolicyProvider
}

// NewGateway creates a gateway over the given providers.
func NewGateway(users UserProvider, policies PolicyProvider) *Gateway {
	return &Gateway{users: users, policies: policies}
}

// PoliciesByUserName returns the policies owned by the user called name.
// The result is never nil; a user without policies yields an empty slice.
func (g *Gateway) PoliciesByUserName(ctx context.Context, name string) ([]models.Policy, error) {
	return Join(ctx,
		func(ctx context.Context) (models.User, error) {
			return g.users.UserByName(ctx, name)
		},
		func(ctx context.Context, user models.User) ([]models.Policy, error) {
			policies, err := g.policies.ListPolicies(ctx)
			if err != nil {
				return nil, err
			}
			return models.PoliciesOwnedBy(policies, user.ID), nil
		},
	)
}

// UserByPolicyID returns the user that owns the policy with the given id.
// A policy whose owner is unknown yields an error matching both
// upstream.ErrNotFound and ErrDanglingReference.
func (g *Gateway) UserByPolicyID(ctx context.Context, policyID string) (models.User, error) {
	return Join(ctx,
		func(ctx context.Context) (models.Policy, error) {
			policies, err := g.policies.ListPolicies(ctx)
			if err != nil {
				return models.Policy{}, err
			}
			for _, p := range policies {
				if p.ID == policyID {
					return p, nil
				}
			}
			return models.Policy{}, fmt.Errorf("policy %q: %w", policyID, upstream.ErrNotFound)
		},
		func(ctx context.Context, policy models.Policy) (models.User, error) {
			user, err := g.users.UserByID(ctx, policy.ClientID)
			if errors.Is(err, upstream.ErrNotFound) {
				return models.User{}, fmt.Errorf("policy %q owner: %w", policy.ID, errors.Join(ErrDanglingReference, err))
			}
			return user, err
		},
	)
}

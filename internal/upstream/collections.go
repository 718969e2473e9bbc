package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/koman-maciej/insurance/internal/models"
)

const (
	sourceUsers       = "users"
	sourcePolicies    = "policies"
	sourceUserService = "user-service"
)

// UserCollection reads the full user collection, served as {"clients": [...]}.
type UserCollection struct {
	client *Client
	url    string
}

// NewUserCollection reads users from url.
func NewUserCollection(client *Client, url string) *UserCollection {
	return &UserCollection{client: client, url: url}
}

// ListUsers returns every user record.
func (u *UserCollection) ListUsers(ctx context.Context) ([]models.User, error) {
	var payload struct {
		Clients []models.User `json:"clients"`
	}
	if err := u.client.getJSON(ctx, sourceUsers, u.url, false, u.client.schemas.users, &payload); err != nil {
		return nil, err
	}
	return payload.Clients, nil
}

// PolicyCollection reads the full policy collection, served as {"policies": [...]}.
type PolicyCollection struct {
	client *Client
	url    string
}

// NewPolicyCollection reads policies from url.
func NewPolicyCollection(client *Client, url string) *PolicyCollection {
	return &PolicyCollection{client: client, url: url}
}

// ListPolicies returns every policy record.
func (p *PolicyCollection) ListPolicies(ctx context.Context) ([]models.Policy, error) {
	var payload struct {
		Policies []models.Policy `json:"policies"`
	}
	if err := p.client.getJSON(ctx, sourcePolicies, p.url, false, p.client.schemas.policies, &payload); err != nil {
		return nil, err
	}
	return payload.Policies, nil
}

// UserServiceClient looks users up through the internal user endpoints of a
// remote gateway instance (GET /rest/internal/users/{id} and ?name=).
type UserServiceClient struct {
	client  *Client
	baseURL string
}

// NewUserServiceClient targets the internal listener at baseURL.
func NewUserServiceClient(client *Client, baseURL string) *UserServiceClient {
	return &UserServiceClient{client: client, baseURL: baseURL}
}

// UserByID returns the user with the given id or an error wrapping ErrNotFound.
// The id always stays a single path segment.
func (s *UserServiceClient) UserByID(ctx context.Context, id string) (models.User, error) {
	if id == "" || id == "." || id == ".." {
		return models.User{}, fmt.Errorf("%s: user %q: %w", sourceUserService, id, ErrNotFound)
	}
	endpoint, err := url.JoinPath(s.baseURL, "rest", "internal", "users", url.PathEscape(id))
	if err != nil {
		return models.User{}, &Error{Source: sourceUserService, Err: err}
	}
	var user models.User
	if err := s.client.getJSON(ctx, sourceUserService, endpoint, true, s.client.schemas.user, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UserByName returns the user with the given name or an error wrapping ErrNotFound.
func (s *UserServiceClient) UserByName(ctx context.Context, name string) (models.User, error) {
	endpoint, err := url.JoinPath(s.baseURL, "rest", "internal", "users")
	if err != nil {
		return models.User{}, &Error{Source: sourceUserService, Err: err}
	}
	endpoint += "?" + url.Values{"name": {name}}.Encode()

	var user models.User
	if err := s.client.getJSON(ctx, sourceUserService, endpoint, true, s.client.schemas.user, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

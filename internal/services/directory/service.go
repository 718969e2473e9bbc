package directory

import (
	"context"
	"fmt"

	"github.com/koman-maciej/insurance/internal/models"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// UserLister reads the full user collection.
type UserLister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Service resolves single users out of the upstream user collection
type Service struct {
	users UserLister
}

// NewService creates a new directory service
func NewService(users UserLister) *Service {
	return &Service{users: users}
}

// ListUsers returns every user in the upstream collection
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

// UserByID returns the user whose id matches, or an error wrapping upstream.ErrNotFound
func (s *Service) UserByID(ctx context.Context, id string) (models.User, error) {
	return s.find(ctx, "id", id, func(u models.User) bool { return u.ID == id })
}

// UserByName returns the first user whose name matches exactly, or an error
// wrapping upstream.ErrNotFound
func (s *Service) UserByName(ctx context.Context, name string) (models.User, error) {
	return s.find(ctx, "name", name, func(u models.User) bool { return u.Name == name })
}

func (s *Service) find(ctx context.Context, field, value string, match func(models.User) bool) (models.User, error) {
	if value == "" {
		return models.User{}, fmt.Errorf("user with empty %s: %w", field, upstream.ErrNotFound)
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user with %s %q: %w", field, value, upstream.ErrNotFound)
}

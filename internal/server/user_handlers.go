package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/models"
)

// UserDirectory looks single users up.
type UserDirectory interface {
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByName(ctx context.Context, name string) (models.User, error)
}

// HandleGetUser serves GET .../users/{userId}.
func HandleGetUser(users UserDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		user, err := users.UserByID(r.Context(), userID)
		if err != nil {
			respondError(w, r, logger, "get user by id", err, zap.String("user_id", userID))
			return
		}
		writeJSON(w, logger, http.StatusOK, user)
	}
}

// HandleFindUser serves GET .../users?name=.
func HandleFindUser(users UserDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			respondError(w, r, logger, "get user by name", fmt.Errorf("name: %w", ErrMissingParameter))
			return
		}

		user, err := users.UserByName(r.Context(), name)
		if err != nil {
			respondError(w, r, logger, "get user by name", err, zap.String("name", name))
			return
		}
		writeJSON(w, logger, http.StatusOK, user)
	}
}

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/models"
)

// PolicyGateway answers questions spanning users and policies.
type PolicyGateway interface {
	PoliciesByUserName(ctx context.Context, name string) ([]models.Policy, error)
	UserByPolicyID(ctx context.Context, policyID string) (models.User, error)
}

type policiesResponse struct {
	Policies []models.Policy `json:"policies"`
}

// HandleListPolicies serves GET /rest/policies?userName=.
func HandleListPolicies(gateway PolicyGateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userName := r.URL.Query().Get("userName")
		if userName == "" {
			respondError(w, r, logger, "list policies by user name", fmt.Errorf("userName: %w", ErrMissingParameter))
			return
		}

		policies, err := gateway.PoliciesByUserName(r.Context(), userName)
		if err != nil {
			respondError(w, r, logger, "list policies by user name", err, zap.String("user_name", userName))
			return
		}
		if policies == nil {
			policies = []models.Policy{}
		}
		writeJSON(w, logger, http.StatusOK, policiesResponse{Policies: policies})
	}
}

// HandleGetPolicyUser serves GET /rest/policies/{policyId}/user.
func HandleGetPolicyUser(gateway PolicyGateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policyID := chi.URLParam(r, "policyId")

		user, err := gateway.UserByPolicyID(r.Context(), policyID)
		if err != nil {
			respondError(w, r, logger, "get user by policy id", err, zap.String("policy_id", policyID))
			return
		}
		writeJSON(w, logger, http.StatusOK, user)
	}
}

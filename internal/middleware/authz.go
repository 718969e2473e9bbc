package middleware

import (
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/auth"
)

// ErrForbiddenRole is reported when an authenticated principal's role does not
// grant the action a route requires. It is rendered as 401, not 403.
var ErrForbiddenRole = errors.New("role not permitted for action")

// RequireAction allows the request through only when the principal's role is
// granted action by the enforcer. It must run after Authenticate.
func RequireAction(enforcer casbin.IEnforcer, action string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal.SubjectID == "" {
				unauthenticated(w)
				return
			}

			allowed, err := auth.Authorize(enforcer, principal.Role, action)
			if err != nil {
				logger.Error("authorization error",
					zap.String("action", action),
					zap.Error(err),
				)
				http.Error(w, "authorization error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				logger.Info("request not authorized",
					zap.String("subject", principal.SubjectID),
					zap.String("role", string(principal.Role)),
					zap.String("action", action),
					zap.Error(ErrForbiddenRole),
				)
				unauthenticated(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

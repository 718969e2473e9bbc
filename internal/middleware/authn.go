package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/auth"
)

// Authenticator resolves the credentials carried by request headers into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) (auth.Principal, error)
}

// Authenticate rejects requests without a valid bearer token with 401 and
// attaches the resolved principal to the request context otherwise.
func Authenticate(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r.Context(), r.Header)
			if err != nil {
				logger.Info("request not authenticated",
					zap.String("path", r.URL.Path),
					zap.String("reason", rejectionReason(err)),
				)
				unauthenticated(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), principal)))
		})
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	default:
		return "missing"
	}
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="policygate"`)
	http.Error(w, "unauthenticated", http.StatusUnauthorized)
}

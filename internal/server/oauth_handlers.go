package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/services/iam"
)

const maxTokenRequestBytes = 64 << 10

// TokenGranter issues access tokens for token endpoint requests.
type TokenGranter interface {
	Grant(ctx context.Context, req iam.GrantRequest) (*oidc.AccessTokenResponse, error)
}

type tokenRequestBody struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// HandleToken serves POST /oauth/token for the password grant. The body may be
// form encoded or JSON; client credentials may also arrive as HTTP Basic auth.
func HandleToken(granter TokenGranter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		req, err := parseTokenRequest(w, r)
		if err != nil {
			logger.Info("malformed token request", zap.Error(err))
			writeTokenError(w, logger, http.StatusBadRequest, tokenErrorResponse{
				Error:       string(oidc.ErrInvalidRequest().ErrorType),
				Description: "malformed token request",
			})
			return
		}

		resp, err := granter.Grant(r.Context(), req)
		if err != nil {
			respondGrantError(w, logger, req, err)
			return
		}

		logger.Info("token issued", zap.String("client_id", req.ClientID))
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

func parseTokenRequest(w http.ResponseWriter, r *http.Request) (iam.GrantRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)

	var body tokenRequestBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return iam.GrantRequest{}, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return iam.GrantRequest{}, err
		}
		body = tokenRequestBody{
			GrantType:    r.PostForm.Get("grant_type"),
			Username:     r.PostForm.Get("username"),
			Password:     r.PostForm.Get("password"),
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
		}
	}

	if id, secret, ok := r.BasicAuth(); ok {
		if body.ClientID != "" && body.ClientID != id {
			return iam.GrantRequest{}, errors.New("client_id in body does not match basic auth")
		}
		body.ClientID, body.ClientSecret = id, secret
	}

	return iam.GrantRequest{
		GrantType:    body.GrantType,
		Username:     body.Username,
		Password:     body.Password,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
	}, nil
}

func respondGrantError(w http.ResponseWriter, logger *zap.Logger, req iam.GrantRequest, err error) {
	fields := []zap.Field{
		zap.String("op", "grant"),
		zap.String("client_id", req.ClientID),
		zap.String("grant_type", req.GrantType),
		zap.Error(err),
	}

	var oerr *oidc.Error
	if !errors.As(err, &oerr) || oerr.ErrorType == oidc.ErrServerError().ErrorType {
		logger.Error("token grant failed", fields...)
		writeTokenError(w, logger, http.StatusInternalServerError, tokenErrorResponse{
			Error: string(oidc.ErrServerError().ErrorType),
		})
		return
	}

	logger.Info("token grant rejected", fields...)

	status := http.StatusBadRequest
	if oerr.ErrorType == oidc.ErrInvalidClient().ErrorType {
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="policygate"`)
	}
	writeTokenError(w, logger, status, tokenErrorResponse{
		Error:       string(oerr.ErrorType),
		Description: oerr.Description,
	})
}

func writeTokenError(w http.ResponseWriter, logger *zap.Logger, status int, body tokenErrorResponse) {
	writeJSON(w, logger, status, body)
}

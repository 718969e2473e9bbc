package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/models"
	"github.com/koman-maciej/insurance/internal/services/aggregation"
	"github.com/koman-maciej/insurance/internal/services/iam"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// mockGranter is a mock implementation of the token granter for testing
type mockGranter struct {
	grantFunc func(ctx context.Context, req iam.GrantRequest) (*oidc.AccessTokenResponse, error)
	lastReq   iam.GrantRequest
}

func (m *mockGranter) Grant(ctx context.Context, req iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
	m.lastReq = req
	if m.grantFunc != nil {
		return m.grantFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockUserDirectory struct {
	userByIDFunc   func(ctx context.Context, id string) (models.User, error)
	userByNameFunc func(ctx context.Context, name string) (models.User, error)
}

func (m *mockUserDirectory) UserByID(ctx context.Context, id string) (models.User, error) {
	if m.userByIDFunc != nil {
		return m.userByIDFunc(ctx, id)
	}
	return models.User{}, errors.New("not implemented")
}

func (m *mockUserDirectory) UserByName(ctx context.Context, name string) (models.User, error) {
	if m.userByNameFunc != nil {
		return m.userByNameFunc(ctx, name)
	}
	return models.User{}, errors.New("not implemented")
}

type mockPolicyGateway struct {
	policiesByUserNameFunc func(ctx context.Context, name string) ([]models.Policy, error)
	userByPolicyIDFunc     func(ctx context.Context, policyID string) (models.User, error)
}

func (m *mockPolicyGateway) PoliciesByUserName(ctx context.Context, name string) ([]models.Policy, error) {
	if m.policiesByUserNameFunc != nil {
		return m.policiesByUserNameFunc(ctx, name)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPolicyGateway) UserByPolicyID(ctx context.Context, policyID string) (models.User, error) {
	if m.userByPolicyIDFunc != nil {
		return m.userByPolicyIDFunc(ctx, policyID)
	}
	return models.User{}, errors.New("not implemented")
}

func TestHandleToken(t *testing.T) {
	okGrant := func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
		return &oidc.AccessTokenResponse{AccessToken: "tok", TokenType: "bearer", ExpiresIn: 3600}, nil
	}

	tests := []struct {
		name          string
		contentType   string
		body          string
		basicAuth     []string
		grantFunc     func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error)
		expectedCode  int
		expectedError string
	}{
		{
			name:         "form body",
			contentType:  "application/x-www-form-urlencoded",
			body:         "grant_type=password&username=a%40b.c&password=qwerty&client_id=amaris&client_secret=amarissecret",
			grantFunc:    okGrant,
			expectedCode: http.StatusOK,
		},
		{
			name:         "json body",
			contentType:  "application/json; charset=utf-8",
			body:         `{"grant_type":"password","username":"a@b.c","password":"qwerty","client_id":"amaris","client_secret":"amarissecret"}`,
			grantFunc:    okGrant,
			expectedCode: http.StatusOK,
		},
		{
			name:         "basic client auth",
			contentType:  "application/x-www-form-urlencoded",
			body:         "grant_type=password&username=a%40b.c&password=qwerty",
			basicAuth:    []string{"amaris", "amarissecret"},
			grantFunc:    okGrant,
			expectedCode: http.StatusOK,
		},
		{
			name:          "basic auth conflicting with body",
			contentType:   "application/x-www-form-urlencoded",
			body:          "grant_type=password&client_id=other",
			basicAuth:     []string{"amaris", "amarissecret"},
			expectedCode:  http.StatusBadRequest,
			expectedError: "invalid_request",
		},
		{
			name:          "broken json",
			contentType:   "application/json",
			body:          `{"grant_type":`,
			expectedCode:  http.StatusBadRequest,
			expectedError: "invalid_request",
		},
		{
			name:        "invalid client",
			contentType: "application/x-www-form-urlencoded",
			body:        "grant_type=password",
			grantFunc: func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
				return nil, oidc.ErrInvalidClient()
			},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "invalid_client",
		},
		{
			name:        "invalid grant",
			contentType: "application/x-www-form-urlencoded",
			body:        "grant_type=password",
			grantFunc: func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
				return nil, oidc.ErrInvalidGrant()
			},
			expectedCode:  http.StatusBadRequest,
			expectedError: "invalid_grant",
		},
		{
			name:        "unsupported grant type",
			contentType: "application/x-www-form-urlencoded",
			body:        "grant_type=refresh_token",
			grantFunc: func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
				return nil, oidc.ErrUnsupportedGrantType()
			},
			expectedCode:  http.StatusBadRequest,
			expectedError: "unsupported_grant_type",
		},
		{
			name:        "server error hides detail",
			contentType: "application/x-www-form-urlencoded",
			body:        "grant_type=password",
			grantFunc: func(context.Context, iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
				return nil, oidc.ErrServerError().WithParent(errors.New("dial tcp 10.0.0.1:443: refused"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			granter := &mockGranter{grantFunc: tt.grantFunc}
			req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.basicAuth != nil {
				req.SetBasicAuth(tt.basicAuth[0], tt.basicAuth[1])
			}
			rec := httptest.NewRecorder()

			HandleToken(granter, zap.NewNop())(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.NotContains(t, rec.Body.String(), "10.0.0.1")

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, body["error"])
				return
			}
			assert.Equal(t, "tok", body["access_token"])
			assert.Equal(t, "bearer", body["token_type"])
			assert.EqualValues(t, 3600, body["expires_in"])
			assert.Equal(t, "amaris", granter.lastReq.ClientID)
			assert.Equal(t, "amarissecret", granter.lastReq.ClientSecret)
			assert.Equal(t, "a@b.c", granter.lastReq.Username)
		})
	}
}

func TestHandleToken_IgnoresQueryParameters(t *testing.T) {
	granter := &mockGranter{grantFunc: func(_ context.Context, req iam.GrantRequest) (*oidc.AccessTokenResponse, error) {
		return nil, oidc.ErrUnsupportedGrantType()
	}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token?grant_type=password&password=qwerty", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	HandleToken(granter, zap.NewNop())(rec, req)

	assert.Empty(t, granter.lastReq.GrantType)
	assert.Empty(t, granter.lastReq.Password)
}

func serveRoute(method, pattern, target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleGetUser(t *testing.T) {
	users := &mockUserDirectory{userByIDFunc: func(_ context.Context, id string) (models.User, error) {
		switch id {
		case "a0ece5db":
			return models.User{ID: id, Name: "Britney", Email: "b@q.com", Role: "admin"}, nil
		case "broken":
			return models.User{}, &upstream.Error{Source: "users", StatusCode: 502, Err: errors.New("bad gateway")}
		default:
			return models.User{}, fmt.Errorf("user %q: %w", id, upstream.ErrNotFound)
		}
	}}

	tests := []struct {
		name           string
		target         string
		expectedStatus int
	}{
		{name: "found", target: "/users/a0ece5db", expectedStatus: http.StatusOK},
		{name: "not found", target: "/users/nope", expectedStatus: http.StatusNotFound},
		{name: "upstream failure", target: "/users/broken", expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveRoute(http.MethodGet, "/users/{userId}", tt.target, HandleGetUser(users, zap.NewNop()))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.JSONEq(t, `{"id":"a0ece5db","name":"Britney","email":"b@q.com","role":"admin"}`, rec.Body.String())
			} else {
				assert.NotContains(t, rec.Body.String(), "bad gateway")
			}
		})
	}
}

func TestHandleFindUser(t *testing.T) {
	users := &mockUserDirectory{userByNameFunc: func(_ context.Context, name string) (models.User, error) {
		if name == "Britney" {
			return models.User{ID: "a0ece5db", Name: name}, nil
		}
		return models.User{}, fmt.Errorf("user %q: %w", name, upstream.ErrNotFound)
	}}

	rec := serveRoute(http.MethodGet, "/users", "/users?name=Britney", HandleFindUser(users, zap.NewNop()))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveRoute(http.MethodGet, "/users", "/users?name=Nobody", HandleFindUser(users, zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveRoute(http.MethodGet, "/users", "/users", HandleFindUser(users, zap.NewNop()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListPolicies(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		gatewayFunc    func(ctx context.Context, name string) ([]models.Policy, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "policies found",
			target: "/policies?userName=Britney",
			gatewayFunc: func(context.Context, string) ([]models.Policy, error) {
				return []models.Policy{{ID: "p1", ClientID: "a0ece5db"}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"policies":[{"id":"p1","amountInsured":0,"email":"","inceptionDate":"","installmentPayment":false,"clientId":"a0ece5db"}]}`,
		},
		{
			name:   "no policies renders empty list",
			target: "/policies?userName=Britney",
			gatewayFunc: func(context.Context, string) ([]models.Policy, error) {
				return nil, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"policies":[]}`,
		},
		{
			name:           "missing userName",
			target:         "/policies",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "user not found",
			target: "/policies?userName=Nobody",
			gatewayFunc: func(context.Context, string) ([]models.Policy, error) {
				return nil, &aggregation.JoinError{Hop: aggregation.HopResolve, Err: upstream.ErrNotFound}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "policies upstream down",
			target: "/policies?userName=Britney",
			gatewayFunc: func(context.Context, string) ([]models.Policy, error) {
				return nil, &aggregation.JoinError{Hop: aggregation.HopFollow, Err: &upstream.Error{Source: "policies", StatusCode: 503, Err: errors.New("down")}}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockPolicyGateway{policiesByUserNameFunc: tt.gatewayFunc}
			rec := serveRoute(http.MethodGet, "/policies", tt.target, HandleListPolicies(gw, zap.NewNop()))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestHandleGetPolicyUser(t *testing.T) {
	gw := &mockPolicyGateway{userByPolicyIDFunc: func(_ context.Context, policyID string) (models.User, error) {
		switch policyID {
		case "64cceef9":
			return models.User{ID: "e8fd159b", Name: "Manning"}, nil
		case "down":
			return models.User{}, &aggregation.JoinError{Hop: aggregation.HopResolve, Err: &upstream.Error{Source: "policies", Err: context.DeadlineExceeded}}
		default:
			return models.User{}, &aggregation.JoinError{Hop: aggregation.HopResolve, Err: fmt.Errorf("policy %q: %w", policyID, upstream.ErrNotFound)}
		}
	}}

	rec := serveRoute(http.MethodGet, "/policies/{policyId}/user", "/policies/64cceef9/user", HandleGetPolicyUser(gw, zap.NewNop()))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveRoute(http.MethodGet, "/policies/{policyId}/user", "/policies/"+url.PathEscape("no such")+"/user", HandleGetPolicyUser(gw, zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveRoute(http.MethodGet, "/policies/{policyId}/user", "/policies/down/user", HandleGetPolicyUser(gw, zap.NewNop()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

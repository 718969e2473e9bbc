package iam

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.opentelemetry.io/otel/attribute"

	"github.com/koman-maciej/insurance/internal/auth"
	"github.com/koman-maciej/insurance/internal/models"
	"github.com/koman-maciej/insurance/internal/telemetry"
)

// TokenTypeBearer is the token_type of every issued access token.
const TokenTypeBearer = "bearer"

// ErrMissingCredentials is returned when a request carries no bearer token.
var ErrMissingCredentials = errors.New("missing bearer token")

// UserSource lists the users a password grant is checked against.
type UserSource interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// GrantRequest carries the parameters of a token request.
type GrantRequest struct {
	GrantType    string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Service issues and verifies access tokens.
type Service struct {
	clients     *auth.ClientStore
	codec       *auth.TokenCodec
	users       UserSource
	credentials auth.CredentialVerifier
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new IAM service
func NewService(clients *auth.ClientStore, codec *auth.TokenCodec, users UserSource, credentials auth.CredentialVerifier, opts ...Option) *Service {
	s := &Service{
		clients:     clients,
		codec:       codec,
		users:       users,
		credentials: credentials,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant performs the resource owner password credentials grant. On failure the
// error is an *oidc.Error carrying the OAuth2 error code, and no token is issued.
func (s *Service) Grant(ctx context.Context, req GrantRequest) (*oidc.AccessTokenResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Grant",
		attribute.String(telemetry.AttrClientID, req.ClientID),
		attribute.String(telemetry.AttrGrantType, req.GrantType),
	)
	defer span.End()

	resp, user, err := s.grant(ctx, req)
	if err != nil {
		var oerr *oidc.Error
		if errors.As(err, &oerr) {
			telemetry.AddEvent(span, "grant.rejected", attribute.String("error", string(oerr.ErrorType)))
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, user.ID),
		attribute.String(telemetry.AttrRole, user.Role),
	)
	telemetry.AddEvent(span, "grant.issued")
	return resp, nil
}

func (s *Service) grant(ctx context.Context, req GrantRequest) (*oidc.AccessTokenResponse, models.User, error) {
	if req.GrantType != auth.GrantTypePassword {
		return nil, models.User{}, oidc.ErrUnsupportedGrantType().WithDescription("grant type %q is not supported", req.GrantType)
	}

	client, ok := s.clients.Lookup(req.ClientID, req.ClientSecret)
	if !ok {
		return nil, models.User{}, oidc.ErrInvalidClient().WithDescription("client authentication failed")
	}
	if !s.clients.IsGrantTypeAllowed(client.ID, req.GrantType) {
		return nil, models.User{}, oidc.ErrUnauthorizedClient().WithDescription("client is not allowed to use this grant type")
	}

	user, err := s.resolveUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, models.User{}, err
	}

	token, err := s.codec.Issue(user.ID, auth.Role(user.Role), s.now())
	if err != nil {
		return nil, models.User{}, oidc.ErrServerError().WithParent(err)
	}

	return &oidc.AccessTokenResponse{
		AccessToken: token.Raw,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   uint64(s.codec.Lifetime() / time.Second),
	}, user, nil
}

func (s *Service) resolveUser(ctx context.Context, username, password string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, oidc.ErrInvalidGrant().WithDescription("invalid user credentials")
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return models.User{}, oidc.ErrServerError().WithParent(err)
	}

	for _, u := range users {
		if u.Email == username && s.credentials.Verify(u, password) {
			if u.ID == "" || u.Role == "" {
				return models.User{}, oidc.ErrServerError().WithDescription("user record is incomplete")
			}
			return u, nil
		}
	}
	return models.User{}, oidc.ErrInvalidGrant().WithDescription("invalid user credentials")
}

// Authenticate resolves the bearer token carried in header into a Principal.
// It returns ErrMissingCredentials when no token is present and an
// *auth.TokenError when the token is rejected.
func (s *Service) Authenticate(ctx context.Context, header http.Header) (auth.Principal, error) {
	_, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authenticate")
	defer span.End()

	tokenStrings := [][]options.TokenStringOption{
		{}, // Authorization: Bearer <token>
	}
	token, err := oidctoken.GetTokenString(bearerScheme(header), tokenStrings)
	if err != nil || strings.TrimSpace(token) == "" {
		telemetry.AddEvent(span, "authentication.missing_credentials")
		return auth.Principal{}, ErrMissingCredentials
	}

	principal, err := s.codec.Verify(strings.TrimSpace(token), s.now())
	if err != nil {
		telemetry.AddEvent(span, "authentication.failed")
		telemetry.RecordError(span, err)
		return auth.Principal{}, err
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, principal.SubjectID),
		attribute.String(telemetry.AttrRole, string(principal.Role)),
	)
	return principal, nil
}

// bearerScheme canonicalizes the Authorization scheme, which RFC 6750
// treats case-insensitively, before the extractor matches "Bearer ".
func bearerScheme(header http.Header) func(string) string {
	return func(key string) string {
		v := header.Get(key)
		if !strings.EqualFold(key, "Authorization") {
			return v
		}
		if scheme, rest, ok := strings.Cut(v, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return "Bearer " + rest
		}
		return v
	}
}

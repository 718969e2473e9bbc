package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the iss claim of every token minted by the authority.
const DefaultIssuer = "amaris"

// DefaultTokenLifetime is the validity window of an access token.
const DefaultTokenLifetime = 3600 * time.Second

var (
	// ErrTokenMalformed is returned when a token cannot be decoded or lacks required claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalidSignature is returned when the signature does not match the signing input.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrTokenExpired is returned when the verification time is past the exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// TokenError reports why a bearer token was rejected.
// Kind is one of ErrTokenMalformed, ErrTokenInvalidSignature or ErrTokenExpired.
type TokenError struct {
	Kind error
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func tokenError(kind error, format string, args ...any) *TokenError {
	return &TokenError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Token is an issued access token together with its decoded fields.
type Token struct {
	Raw       string
	ID        string
	Issuer    string
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims keeps the claim names existing token consumers already read:
// the subject id travels as "username".
type accessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var signatureEncoding = base64.RawURLEncoding.Strict()

// TokenCodec signs and verifies HS256 access tokens with a pre-shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	parser   *jwt.Parser
}

// NewTokenCodec creates a codec for the given secret, issuer and token lifetime.
func NewTokenCodec(secret []byte, issuer string, lifetime time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}

	return &TokenCodec{
		secret:   append([]byte(nil), secret...),
		issuer:   issuer,
		lifetime: lifetime,
		// Expiry and issuer are checked by Verify against the caller's clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Lifetime returns the validity window applied to issued tokens.
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}

// Issuer returns the iss claim written into issued tokens.
func (c *TokenCodec) Issuer() string {
	return c.issuer
}

// Issue mints a signed token for subjectID with the given role, valid from now
// until now plus the codec lifetime.
func (c *TokenCodec) Issue(subjectID string, role Role, now time.Time) (*Token, error) {
	if subjectID == "" {
		return nil, errors.New("subject id is required")
	}
	if role == "" {
		return nil, errors.New("role is required")
	}

	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(c.lifetime)
	id := uuid.NewString()

	claims := accessClaims{
		Username: subjectID,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        id,
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		Raw:       raw,
		ID:        id,
		Issuer:    c.issuer,
		SubjectID: subjectID,
		Role:      role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature of raw before decoding anything else, then
// validates its claims at time now. Any failure is a *TokenError.
func (c *TokenCodec) Verify(raw string, now time.Time) (Principal, error) {
	raw = strings.TrimSpace(raw)

	dot := strings.LastIndexByte(raw, '.')
	if dot <= 0 || dot == len(raw)-1 {
		return Principal{}, tokenError(ErrTokenMalformed, "missing signature segment")
	}
	sig, err := signatureEncoding.DecodeString(raw[dot+1:])
	if err != nil {
		return Principal{}, tokenError(ErrTokenMalformed, "decode signature: %w", err)
	}
	if err := jwt.SigningMethodHS256.Verify(raw[:dot], sig, c.secret); err != nil {
		return Principal{}, &TokenError{Kind: ErrTokenInvalidSignature, Err: err}
	}

	var claims accessClaims
	if _, err := c.parser.ParseWithClaims(raw, &claims, c.keyFunc); err != nil {
		return Principal{}, &TokenError{Kind: ErrTokenMalformed, Err: err}
	}

	switch {
	case claims.Issuer != c.issuer:
		return Principal{}, tokenError(ErrTokenMalformed, "unexpected issuer %q", claims.Issuer)
	case claims.Username == "":
		return Principal{}, tokenError(ErrTokenMalformed, "missing username claim")
	case claims.Role == "":
		return Principal{}, tokenError(ErrTokenMalformed, "missing role claim")
	case claims.ExpiresAt == nil:
		return Principal{}, tokenError(ErrTokenMalformed, "missing exp claim")
	}

	if now.After(claims.ExpiresAt.Time) {
		return Principal{}, tokenError(ErrTokenExpired, "expired at %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}

	return Principal{SubjectID: claims.Username, Role: Role(claims.Role)}, nil
}

func (c *TokenCodec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}

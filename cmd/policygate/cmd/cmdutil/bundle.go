package cmdutil

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/auth"
	"github.com/koman-maciej/insurance/internal/config"
	"github.com/koman-maciej/insurance/internal/services/aggregation"
	"github.com/koman-maciej/insurance/internal/services/directory"
	"github.com/koman-maciej/insurance/internal/services/iam"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// Bundle holds every service the commands need, wired from one Config.
type Bundle struct {
	Codec     *auth.TokenCodec
	Clients   *auth.ClientStore
	Enforcer  casbin.IEnforcer
	Directory *directory.Service
	IAM       *iam.Service
	Gateway   *aggregation.Gateway
}

// NewBundle centralizes service construction for CLI commands.
func NewBundle(cfg *config.Config, logger *zap.Logger) (*Bundle, error) {
	codec, err := NewTokenCodec(cfg)
	if err != nil {
		return nil, err
	}

	enforcer, err := auth.InitEnforcer(auth.DefaultRolePermissions)
	if err != nil {
		return nil, fmt.Errorf("initialize casbin enforcer: %w", err)
	}

	client, err := upstream.NewClient(nil, cfg.Upstream.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	users := directory.NewService(upstream.NewUserCollection(client, cfg.Upstream.UsersURL))
	clients := NewClientStore(cfg)

	verifier, err := NewCredentialVerifier(cfg)
	if err != nil {
		return nil, err
	}

	// Policy lookups reach users through the internal user service when one is
	// configured, otherwise in-process.
	var userProvider aggregation.UserProvider = users
	if cfg.Upstream.UserServiceURL != "" {
		userProvider = upstream.NewUserServiceClient(client, cfg.Upstream.UserServiceURL)
		logger.Debug("policy gateway uses the internal user service", zap.String("url", cfg.Upstream.UserServiceURL))
	}
	policies := upstream.NewPolicyCollection(client, cfg.Upstream.PoliciesURL)

	return &Bundle{
		Codec:     codec,
		Clients:   clients,
		Enforcer:  enforcer,
		Directory: users,
		IAM:       iam.NewService(clients, codec, users, verifier),
		Gateway:   aggregation.NewGateway(userProvider, policies),
	}, nil
}

// NewTokenCodec builds the codec from the token settings.
func NewTokenCodec(cfg *config.Config) (*auth.TokenCodec, error) {
	codec, err := auth.NewTokenCodec([]byte(cfg.Token.Secret), cfg.Token.Issuer, cfg.Token.Lifetime)
	if err != nil {
		return nil, fmt.Errorf("create token codec: %w", err)
	}
	return codec, nil
}

// NewClientStore builds the static client registry.
func NewClientStore(cfg *config.Config) *auth.ClientStore {
	clients := make([]auth.Client, 0, len(cfg.Clients))
	for _, c := range cfg.Clients {
		clients = append(clients, auth.Client{ID: c.ID, Secret: c.Secret, GrantTypes: c.GrantTypes})
	}
	return auth.NewClientStore(clients)
}

// NewCredentialVerifier selects the password check for the configured mode.
func NewCredentialVerifier(cfg *config.Config) (auth.CredentialVerifier, error) {
	switch cfg.Credentials.Mode {
	case config.CredentialsModeShared:
		return auth.SharedPasswordVerifier{Password: cfg.Credentials.SharedPassword}, nil
	case config.CredentialsModeBcrypt:
		return auth.BcryptVerifier{Hashes: cfg.Credentials.HashesByEmail()}, nil
	default:
		return nil, fmt.Errorf("unknown credentials mode %q", cfg.Credentials.Mode)
	}
}

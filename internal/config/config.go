package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// POLICYGATE_TOKEN_SECRET for token.secret.
const EnvPrefix = "POLICYGATE"

// Credential verification modes.
const (
	CredentialsModeShared = "shared"
	CredentialsModeBcrypt = "bcrypt"
)

// Config holds the application configuration
type Config struct {
	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	Server      ServerConfig      `mapstructure:"server"`
	Token       TokenConfig       `mapstructure:"token"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`

	// Registered OAuth2 clients
	Clients []ClientConfig `mapstructure:"clients"`
}

// ServerConfig holds the listener addresses.
type ServerConfig struct {
	// Public listener (token endpoint and gated REST routes)
	Addr string `mapstructure:"addr"`
	// Internal listener (ungated user lookups), keep it off public interfaces
	InternalAddr string `mapstructure:"internal_addr"`
}

// TokenConfig configures the access token codec.
type TokenConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Lifetime time.Duration `mapstructure:"lifetime"`
}

// CredentialsConfig selects how user passwords are checked.
//
// Mode "shared" accepts one password for every user. It is a known weak
// policy kept for compatibility with existing deployments; "bcrypt" checks
// per-user hashes keyed by email.
type CredentialsConfig struct {
	Mode           string         `mapstructure:"mode"`
	SharedPassword string         `mapstructure:"shared_password"`
	PasswordHashes []PasswordHash `mapstructure:"password_hashes"`
}

// PasswordHash is a bcrypt hash for the user with the given email. Kept as a
// list entry because viper splits map keys on dots.
type PasswordHash struct {
	Email string `mapstructure:"email"`
	Hash  string `mapstructure:"hash"`
}

// HashesByEmail indexes the configured password hashes by email.
func (c CredentialsConfig) HashesByEmail() map[string]string {
	hashes := make(map[string]string, len(c.PasswordHashes))
	for _, h := range c.PasswordHashes {
		hashes[h.Email] = h.Hash
	}
	return hashes
}

// UpstreamConfig locates the remote collections.
type UpstreamConfig struct {
	UsersURL    string `mapstructure:"users_url"`
	PoliciesURL string `mapstructure:"policies_url"`
	// Empty means users are looked up in-process
	UserServiceURL string        `mapstructure:"user_service_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// CORSConfig configures cross-origin access to the public listener.
// An empty list disables cross-origin access; "*" must be listed explicitly.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TelemetryConfig configures OpenTelemetry tracing. Tracing stays disabled
// while OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// ClientConfig is one entry of the static client registry.
type ClientConfig struct {
	ID         string   `mapstructure:"id"`
	Secret     string   `mapstructure:"secret"`
	GrantTypes []string `mapstructure:"grant_types"`
}

// SetDefaults registers the default value of every key on v. Keys must be
// known to viper for AutomaticEnv to resolve nested values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.internal_addr", "127.0.0.1:8001")
	v.SetDefault("token.secret", "")
	v.SetDefault("token.issuer", "amaris")
	v.SetDefault("token.lifetime", 3600*time.Second)
	v.SetDefault("credentials.mode", CredentialsModeShared)
	v.SetDefault("credentials.shared_password", "qwerty")
	v.SetDefault("credentials.password_hashes", []map[string]any{})
	v.SetDefault("upstream.users_url", "http://www.mocky.io/v2/5808862710000087232b75ac")
	v.SetDefault("upstream.policies_url", "http://www.mocky.io/v2/580891a4100000e8242b75c5")
	v.SetDefault("upstream.user_service_url", "")
	v.SetDefault("upstream.timeout", 5*time.Second)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.service_name", "policygate")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("clients", []map[string]any{
		{"id": "amaris", "secret": "amarissecret", "grant_types": []string{"password"}},
	})
}

// Load reads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v. Environment
// variables prefixed with EnvPrefix override config file values.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.InternalAddr == "" {
		return errors.New("server.internal_addr is required")
	}
	if c.Token.Secret == "" {
		return fmt.Errorf("token.secret is required (env: %s_TOKEN_SECRET)", EnvPrefix)
	}
	if c.Token.Issuer == "" {
		return errors.New("token.issuer is required")
	}
	if c.Token.Lifetime <= 0 {
		return fmt.Errorf("token.lifetime must be positive, got %s", c.Token.Lifetime)
	}

	switch c.Credentials.Mode {
	case CredentialsModeShared:
		if c.Credentials.SharedPassword == "" {
			return errors.New("credentials.shared_password is required in shared mode")
		}
	case CredentialsModeBcrypt:
		if len(c.Credentials.PasswordHashes) == 0 {
			return errors.New("credentials.password_hashes is required in bcrypt mode")
		}
		for i, h := range c.Credentials.PasswordHashes {
			if h.Email == "" || h.Hash == "" {
				return fmt.Errorf("credentials.password_hashes[%d]: email and hash are required", i)
			}
		}
	default:
		return fmt.Errorf("unknown credentials.mode %q (want %s or %s)", c.Credentials.Mode, CredentialsModeShared, CredentialsModeBcrypt)
	}

	if c.Upstream.UsersURL == "" {
		return errors.New("upstream.users_url is required")
	}
	if c.Upstream.PoliciesURL == "" {
		return errors.New("upstream.policies_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}

	if len(c.Clients) == 0 {
		return errors.New("at least one client must be registered")
	}
	for i, client := range c.Clients {
		if client.ID == "" || client.Secret == "" {
			return fmt.Errorf("clients[%d]: id and secret are required", i)
		}
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_WithDefaults tests that only the signing secret must be supplied
func TestLoad_WithDefaults(t *testing.T) {
	t.Setenv("POLICYGATE_TOKEN_SECRET", "s3cret")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "127.0.0.1:8001", cfg.Server.InternalAddr)
	assert.Equal(t, "s3cret", cfg.Token.Secret)
	assert.Equal(t, "amaris", cfg.Token.Issuer)
	assert.Equal(t, time.Hour, cfg.Token.Lifetime)
	assert.Equal(t, CredentialsModeShared, cfg.Credentials.Mode)
	assert.Equal(t, "qwerty", cfg.Credentials.SharedPassword)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Empty(t, cfg.Upstream.UserServiceURL)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "policygate", cfg.Telemetry.ServiceName)

	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "amaris", cfg.Clients[0].ID)
	assert.Equal(t, "amarissecret", cfg.Clients[0].Secret)
	assert.Equal(t, []string{"password"}, cfg.Clients[0].GrantTypes)
}

// TestLoad_WithEnvironmentVariables tests that POLICYGATE_ prefixed environment variables work
func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("POLICYGATE_TOKEN_SECRET", "env-secret")
	t.Setenv("POLICYGATE_SERVER_ADDR", "env:9090")
	t.Setenv("POLICYGATE_DEBUG", "true")
	t.Setenv("POLICYGATE_TOKEN_LIFETIME", "15m")
	t.Setenv("POLICYGATE_UPSTREAM_TIMEOUT", "2s")
	t.Setenv("POLICYGATE_UPSTREAM_USER_SERVICE_URL", "http://127.0.0.1:8001")
	t.Setenv("POLICYGATE_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("POLICYGATE_TELEMETRY_OTLP_ENDPOINT", "otel-collector:4318")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Token.Secret)
	assert.Equal(t, "env:9090", cfg.Server.Addr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 15*time.Minute, cfg.Token.Lifetime)
	assert.Equal(t, 2*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "http://127.0.0.1:8001", cfg.Upstream.UserServiceURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "otel-collector:4318", cfg.Telemetry.OTLPEndpoint)
}

// TestLoad_WithConfigFile tests config file loading
func TestLoad_WithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "policygate.yaml")
	configContent := `
server:
  addr: "127.0.0.1:8888"
token:
  secret: "file-secret"
  lifetime: 30m
credentials:
  mode: bcrypt
  password_hashes:
    - email: britneyblankenship@quotezart.com
      hash: "$2a$10$abcdefghijklmnopqrstuv"
upstream:
  users_url: "http://users.internal/clients"
  policies_url: "http://policies.internal/policies"
clients:
  - id: amaris
    secret: amarissecret
    grant_types: [password]
  - id: reporting
    secret: reportingsecret
    grant_types: [client_credentials]
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8888", cfg.Server.Addr)
	assert.Equal(t, "file-secret", cfg.Token.Secret)
	assert.Equal(t, 30*time.Minute, cfg.Token.Lifetime)
	assert.Equal(t, CredentialsModeBcrypt, cfg.Credentials.Mode)
	assert.Equal(t, map[string]string{
		"britneyblankenship@quotezart.com": "$2a$10$abcdefghijklmnopqrstuv",
	}, cfg.Credentials.HashesByEmail())
	assert.Equal(t, "http://users.internal/clients", cfg.Upstream.UsersURL)
	require.Len(t, cfg.Clients, 2)
	assert.Equal(t, "reporting", cfg.Clients[1].ID)
	assert.Equal(t, []string{"client_credentials"}, cfg.Clients[1].GrantTypes)
}

// TestLoad_EnvironmentVariablePrecedence tests that env vars override the config file
func TestLoad_EnvironmentVariablePrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "policygate.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("token:\n  secret: from-file\n  issuer: file-issuer\n"), 0o644))
	t.Setenv("POLICYGATE_TOKEN_SECRET", "from-env")

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token.Secret)
	assert.Equal(t, "file-issuer", cfg.Token.Issuer)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:      ServerConfig{Addr: ":8080", InternalAddr: "127.0.0.1:8001"},
			Token:       TokenConfig{Secret: "s", Issuer: "amaris", Lifetime: time.Hour},
			Credentials: CredentialsConfig{Mode: CredentialsModeShared, SharedPassword: "qwerty"},
			Upstream:    UpstreamConfig{UsersURL: "http://u", PoliciesURL: "http://p", Timeout: time.Second},
			Clients:     []ClientConfig{{ID: "amaris", Secret: "amarissecret", GrantTypes: []string{"password"}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Token.Secret = "" }, wantErr: "token.secret"},
		{name: "missing issuer", mutate: func(c *Config) { c.Token.Issuer = "" }, wantErr: "token.issuer"},
		{name: "zero lifetime", mutate: func(c *Config) { c.Token.Lifetime = 0 }, wantErr: "token.lifetime"},
		{name: "unknown mode", mutate: func(c *Config) { c.Credentials.Mode = "ldap" }, wantErr: "credentials.mode"},
		{name: "bcrypt without hashes", mutate: func(c *Config) { c.Credentials.Mode = CredentialsModeBcrypt }, wantErr: "password_hashes"},
		{name: "bcrypt hash without email", mutate: func(c *Config) {
			c.Credentials.Mode = CredentialsModeBcrypt
			c.Credentials.PasswordHashes = []PasswordHash{{Hash: "$2a$10$x"}}
		}, wantErr: "password_hashes[0]"},
		{name: "empty shared password", mutate: func(c *Config) { c.Credentials.SharedPassword = "" }, wantErr: "shared_password"},
		{name: "missing users url", mutate: func(c *Config) { c.Upstream.UsersURL = "" }, wantErr: "users_url"},
		{name: "missing policies url", mutate: func(c *Config) { c.Upstream.PoliciesURL = "" }, wantErr: "policies_url"},
		{name: "negative timeout", mutate: func(c *Config) { c.Upstream.Timeout = -time.Second }, wantErr: "upstream.timeout"},
		{name: "no clients", mutate: func(c *Config) { c.Clients = nil }, wantErr: "client"},
		{name: "client without secret", mutate: func(c *Config) { c.Clients[0].Secret = "" }, wantErr: "clients[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig holds every setting the server reads. Values come from the
// environment with sensible development defaults; the signing key and
// SMTP credentials are the only ones that must change in production.
type AppConfig struct {
	ListenAddr string `env:"ACCOUNTS_LISTEN_ADDR" envDefault:":8080"`
	BaseURL    string `env:"ACCOUNTS_BASE_URL" envDefault:"http://localhost:8080"`
	DBPath     string `env:"ACCOUNTS_DB_PATH" envDefault:"file:accounts.db?cache=shared&_pragma=foreign_keys(1)"`
	Debug      bool   `env:"ACCOUNTS_DEBUG" envDefault:"false"`

	Auth AuthConfig `envPrefix:"ACCOUNTS_AUTH_"`
	SMTP SMTPConfig `envPrefix:"ACCOUNTS_SMTP_"`
}

// AuthConfig implements the options interface the auth stack expects.
type AuthConfig struct {
	SigningKey            string        `env:"SIGNING_KEY" envDefault:"dev-signing-key-change-me"`
	ContextKey            string        `env:"CONTEXT_KEY" envDefault:"session"`
	TokenExpiration       int           `env:"TOKEN_EXPIRATION" envDefault:"24"`
	ExtendedTokenDuration int           `env:"EXTENDED_TOKEN_DURATION" envDefault:"168"`
	AuthScheme            string        `env:"SCHEME" envDefault:"Bearer"`
	Issuer                string        `env:"ISSUER" envDefault:"go-accounts"`
	Audience              []string      `env:"AUDIENCE" envSeparator:"," envDefault:"go-accounts"`
	RejectedRouteKey      string        `env:"REJECTED_ROUTE_KEY" envDefault:"rejected_route"`
	RejectedRouteDefault  string        `env:"REJECTED_ROUTE_DEFAULT" envDefault:"/profile"`
	VerifyTokenTTL        time.Duration `env:"VERIFY_TOKEN_TTL" envDefault:"72h"`
	ResetTokenTTL         time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
}

// SMTPConfig configures outbound mail. With Enabled false the server
// logs links to stdout instead of sending, which mirrors a console
// email backend for development.
type SMTPConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"1025"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

// Load parses the environment into an AppConfig.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// GetAuth returns the auth options
func (c *AppConfig) GetAuth() *AuthConfig {
	return &c.Auth
}

func (a *AuthConfig) GetSigningKey() string            { return a.SigningKey }
func (a *AuthConfig) GetContextKey() string            { return a.ContextKey }
func (a *AuthConfig) GetTokenExpiration() int          { return a.TokenExpiration }
func (a *AuthConfig) GetExtendedTokenDuration() int    { return a.ExtendedTokenDuration }
func (a *AuthConfig) GetAuthScheme() string            { return a.AuthScheme }
func (a *AuthConfig) GetIssuer() string                { return a.Issuer }
func (a *AuthConfig) GetAudience() []string            { return a.Audience }
func (a *AuthConfig) GetRejectedRouteKey() string      { return a.RejectedRouteKey }
func (a *AuthConfig) GetRejectedRouteDefault() string  { return a.RejectedRouteDefault }
func (a *AuthConfig) GetVerifyTokenTTL() time.Duration { return a.VerifyTokenTTL }
func (a *AuthConfig) GetResetTokenTTL() time.Duration  { return a.ResetTokenTTL }

// Address formats the SMTP dial address.
func (s *SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

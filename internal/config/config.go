// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmazitov/forksy-backend/internal/limiter"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/token"
)

// Provider holds one identity provider's client credentials.
type Provider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Config is the full server configuration.
type Config struct {
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":4000"`
	OpsAddr      string `env:"OPS_ADDR" envDefault:":4001"`
	OpsTLSCert   string `env:"OPS_TLS_CERT"`
	OpsTLSKey    string `env:"OPS_TLS_KEY"`
	DatabaseURL  string `env:"DATABASE_URL,required,notEmpty"`
	ClientURL    string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	JWTSecret        string        `env:"JWT_SECRET,required,notEmpty,unset"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,unset"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	RememberMeTTL    time.Duration `env:"REMEMBER_ME_TTL" envDefault:"720h"`

	LoginMaxFails int           `env:"LOGIN_MAX_FAILS" envDefault:"5"`
	LoginWindow   time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	LoginBlockFor time.Duration `env:"LOGIN_BLOCK_FOR" envDefault:"15m"`

	Google   Provider `envPrefix:"GOOGLE_"`
	GitHub   Provider `envPrefix:"GITHUB_"`
	Facebook Provider `envPrefix:"FACEBOOK_"`
}

// Load reads an optional .env file (the first existing of files, or ".env")
// and parses the environment. Variables already set win over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", f, err)
			}
			break
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.RememberMeTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.RememberMeTTL < c.RefreshTokenTTL {
		return errors.New("config: REMEMBER_ME_TTL must not be shorter than REFRESH_TOKEN_TTL")
	}
	if (c.OpsTLSCert == "") != (c.OpsTLSKey == "") {
		return errors.New("config: OPS_TLS_CERT and OPS_TLS_KEY go together")
	}
	return nil
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// IsLocal reports whether development logging should be used.
func (c *Config) IsLocal() bool { return c.AppEnv == "local" || c.AppEnv == "development" }

// Token returns issuer settings. An empty refresh secret falls back to the access secret.
func (c *Config) Token() token.Config {
	return token.Config{
		AccessSecret:  []byte(c.JWTSecret),
		RefreshSecret: []byte(c.JWTRefreshSecret),
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	}
}

// Limiter returns login throttling thresholds.
func (c *Config) Limiter() limiter.Config {
	return limiter.Config{MaxFails: c.LoginMaxFails, Window: c.LoginWindow, BlockFor: c.LoginBlockFor}
}

// OAuth returns adapter settings keyed by provider.
func (c *Config) OAuth() map[model.Provider]oauth.Config {
	conv := func(p Provider) oauth.Config {
		return oauth.Config{ClientID: p.ClientID, ClientSecret: p.ClientSecret, CallbackURL: p.CallbackURL}
	}
	return map[model.Provider]oauth.Config{
		model.ProviderGoogle:   conv(c.Google),
		model.ProviderGitHub:   conv(c.GitHub),
		model.ProviderFacebook: conv(c.Facebook),
	}
}

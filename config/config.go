package config

import (
	"fmt"
	"time"
)

// BaseConfig is the root configuration document, loaded from
// config/app.json with environment overrides applied on top.
type BaseConfig struct {
	App         App         `json:"app"`
	Server      Server      `json:"server"`
	Auth        Auth        `json:"auth"`
	Persistence Persistence `json:"persistence"`
	Mail        Mail        `json:"mail"`
}

type App struct {
	Name    string `json:"name"`
	Env     string `json:"env"`
	Debug   bool   `json:"debug"`
	BaseURL string `json:"base_url"`
}

type Server struct {
	Port          int      `json:"port"`
	AllowedOrigin string   `json:"allowed_origin"`
	AllowedEmails []string `json:"allowed_email_domains"`
}

type Auth struct {
	SigningKey                  string   `json:"signing_key"`
	RefreshSigningKey           string   `json:"refresh_signing_key"`
	SigningMethod               string   `json:"signing_method"`
	ContextKey                  string   `json:"context_key"`
	TokenExpiration             int      `json:"token_expiration"`
	RefreshTokenExpiration      int      `json:"refresh_token_expiration"`
	VerificationTokenExpiration int      `json:"verification_token_expiration"`
	TokenLookup                 string   `json:"token_lookup"`
	AuthScheme                  string   `json:"auth_scheme"`
	Issuer                      string   `json:"issuer"`
	Audience                    []string `json:"audience"`
	UseHashids                  bool     `json:"use_hashids"`
}

type Persistence struct {
	Driver                string `json:"driver"`
	DSN                   string `json:"dsn"`
	Debug                 bool   `json:"debug"`
	PingTimeoutExpression string `json:"ping_timeout"`
}

type Mail struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func (a *BaseConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if a.Persistence.DSN == "" {
		return fmt.Errorf("persistence.dsn is required")
	}
	return nil
}

func (a *BaseConfig) GetApp() App                 { return a.App }
func (a *BaseConfig) GetServer() Server           { return a.Server }
func (a *BaseConfig) GetAuth() Auth               { return a.Auth }
func (a *BaseConfig) GetPersistence() Persistence { return a.Persistence }
func (a *BaseConfig) GetMail() Mail               { return a.Mail }

func (s Server) GetPort() int {
	if s.Port == 0 {
		return 8080
	}
	return s.Port
}

func (s Server) GetAllowedOrigin() string {
	if s.AllowedOrigin == "" {
		return "*"
	}
	return s.AllowedOrigin
}

// Auth satisfies the users.Config interface.

func (a Auth) GetSigningKey() string        { return a.SigningKey }
func (a Auth) GetRefreshSigningKey() string { return a.RefreshSigningKey }

func (a Auth) GetSigningMethod() string {
	if a.SigningMethod == "" {
		return "HS256"
	}
	return a.SigningMethod
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

// GetTokenExpiration is the access token TTL in minutes.
func (a Auth) GetTokenExpiration() int {
	if a.TokenExpiration == 0 {
		return 30
	}
	return a.TokenExpiration
}

// GetRefreshTokenExpiration is the refresh token TTL in hours.
func (a Auth) GetRefreshTokenExpiration() int {
	if a.RefreshTokenExpiration == 0 {
		return 24
	}
	return a.RefreshTokenExpiration
}

// GetVerificationTokenExpiration is the verification token TTL in hours.
func (a Auth) GetVerificationTokenExpiration() int {
	if a.VerificationTokenExpiration == 0 {
		return 48
	}
	return a.VerificationTokenExpiration
}

func (a Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization"
	}
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

func (a Auth) GetIssuer() string     { return a.Issuer }
func (a Auth) GetAudience() []string { return a.Audience }

// Persistence satisfies the go-persistence-bun config surface.

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string { return p.DSN }

func (p Persistence) GetServer() string { return "" }

func (p Persistence) GetOtelIdentifier() string { return "" }

func (p Persistence) GetDebug() bool { return p.Debug }

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Server holds the settings of the stand-in user API (cmd/usersapi).
type Server struct {
	Port   int
	DBPath string

	// Auth is enabled only when all three are set. JWTSecret must be at
	// least 16 characters. Generate one with: openssl rand -hex 32
	JWTSecret    string
	ClientID     string
	ClientSecret string
	TokenTTL     time.Duration

	// ResponseDelay is added to every /users response to make loading
	// states visible when the API runs on localhost.
	ResponseDelay time.Duration
}

// AuthEnabled reports whether /users requires a bearer token.
func (s Server) AuthEnabled() bool {
	return s.JWTSecret != "" && s.ClientID != "" && s.ClientSecret != ""
}

// LoadServer reads the server settings from the environment.
func LoadServer(getenv func(string) string) (Server, error) {
	var errs error

	cfg := Server{
		Port:          envInt(getenv, "PORT", 8080, &errs),
		DBPath:        envString(getenv, "DB_PATH", "data/users.db"),
		JWTSecret:     envString(getenv, "JWT_SECRET", ""),
		ClientID:      envString(getenv, "API_CLIENT_ID", ""),
		ClientSecret:  envString(getenv, "API_CLIENT_SECRET", ""),
		TokenTTL:      envDuration(getenv, "TOKEN_TTL", 15*time.Minute, &errs),
		ResponseDelay: envDuration(getenv, "RESPONSE_DELAY", 0, &errs),
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.TokenTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL))
	}
	if cfg.ResponseDelay < 0 {
		errs = multierr.Append(errs, fmt.Errorf("RESPONSE_DELAY must not be negative, got %s", cfg.ResponseDelay))
	}

	set := 0
	for _, v := range []string{cfg.JWTSecret, cfg.ClientID, cfg.ClientSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		errs = multierr.Append(errs, errors.New("JWT_SECRET, API_CLIENT_ID and API_CLIENT_SECRET must be set together"))
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 16 {
		errs = multierr.Append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}

	return cfg, wrap(errs)
}

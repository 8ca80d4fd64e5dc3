package config

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap turns a map into a getenv function.
func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

// =========================================================================
// CLIENT
// =========================================================================

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient(nil, envMap(nil), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, DefaultClient(), cfg)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, ScopeWindow, cfg.SearchScope)
	assert.False(t, cfg.HasCredentials())
}

func TestLoadClient_EnvThenFlags(t *testing.T) {
	env := envMap(map[string]string{
		"USERDIR_BASE_URL":     "http://localhost:8080",
		"USERDIR_PAGE_SIZE":    "3",
		"USERDIR_SETTLE_DELAY": "50ms",
		"USERDIR_LOG_LEVEL":    "debug",
	})

	cfg, err := LoadClient([]string{"-page-size", "7", "-search-scope", "collection"}, env, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 7, cfg.PageSize, "flag overrides env")
	assert.Equal(t, 50*time.Millisecond, cfg.SettleDelay, "env kept when flag absent")
	assert.Equal(t, ScopeCollection, cfg.SearchScope)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadClient_Credentials(t *testing.T) {
	env := envMap(map[string]string{
		"USERDIR_TOKEN_URL":     "http://localhost:8080/oauth/token",
		"USERDIR_CLIENT_ID":     "terminal",
		"USERDIR_CLIENT_SECRET": "s3cret",
	})

	cfg, err := LoadClient(nil, env, io.Discard)
	require.NoError(t, err)
	assert.True(t, cfg.HasCredentials())
}

func TestLoadClient_CollectsAllErrors(t *testing.T) {
	env := envMap(map[string]string{
		"USERDIR_BASE_URL":     "ftp://example.com",
		"USERDIR_PAGE_SIZE":    "zero",
		"USERDIR_SETTLE_DELAY": "-1s",
		"USERDIR_SEARCH_SCOPE": "everything",
		"USERDIR_CLIENT_ID":    "lonely",
	})

	_, err := LoadClient(nil, env, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	msg := err.Error()
	for _, fragment := range []string{
		"USERDIR_PAGE_SIZE",
		"scheme must be http or https",
		"settle delay must not be negative",
		"search scope must be",
		"must be set together",
	} {
		assert.Contains(t, msg, fragment)
	}
}

func TestLoadClient_Help(t *testing.T) {
	_, err := LoadClient([]string{"-h"}, envMap(nil), io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

// =========================================================================
// SERVER
// =========================================================================

func TestLoadServer(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantErr  bool
		wantAuth bool
		check    func(t *testing.T, cfg Server)
	}{
		{
			name: "defaults",
			env:  nil,
			check: func(t *testing.T, cfg Server) {
				assert.Equal(t, 8080, cfg.Port)
				assert.Equal(t, "data/users.db", cfg.DBPath)
				assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
				assert.Zero(t, cfg.ResponseDelay)
			},
		},
		{
			name: "auth enabled",
			env: map[string]string{
				"JWT_SECRET":        "0123456789abcdef0123",
				"API_CLIENT_ID":     "terminal",
				"API_CLIENT_SECRET": "s3cret",
				"RESPONSE_DELAY":    "300ms",
			},
			wantAuth: true,
			check: func(t *testing.T, cfg Server) {
				assert.Equal(t, 300*time.Millisecond, cfg.ResponseDelay)
			},
		},
		{
			name:    "bad port",
			env:     map[string]string{"PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "partial auth",
			env:     map[string]string{"JWT_SECRET": "0123456789abcdef0123"},
			wantErr: true,
		},
		{
			name: "short secret",
			env: map[string]string{
				"JWT_SECRET":        "short",
				"API_CLIENT_ID":     "terminal",
				"API_CLIENT_SECRET": "s3cret",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadServer(envMap(tt.env))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, cfg.AuthEnabled())
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

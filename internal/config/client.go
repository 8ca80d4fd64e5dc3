package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.uber.org/multierr"
)

// Search scopes accepted by USERDIR_SEARCH_SCOPE / -search-scope.
const (
	ScopeWindow     = "window"     // filter only the revealed page window
	ScopeCollection = "collection" // filter the whole collection, then window
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Client holds the settings of the terminal client (cmd/userdir).
type Client struct {
	BaseURL     string
	PageSize    int
	SettleDelay time.Duration
	SearchScope string
	Timeout     time.Duration

	// OAuth2 client_credentials. Either all three are set or none.
	TokenURL     string
	ClientID     string
	ClientSecret string

	LogLevel slog.Level
	LogFile  string // empty means stderr
}

// DefaultClient returns the settings used when nothing is configured.
func DefaultClient() Client {
	return Client{
		BaseURL:     DefaultBaseURL,
		PageSize:    5,
		SettleDelay: 500 * time.Millisecond,
		SearchScope: ScopeWindow,
		Timeout:     10 * time.Second,
		LogLevel:    slog.LevelWarn,
	}
}

// HasCredentials reports whether requests should carry an OAuth2 bearer token.
func (c Client) HasCredentials() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// LoadClient reads the environment through getenv, then applies flags from
// args on top. Flags left unset keep the environment's value.
//
// flag.ErrHelp is returned unchanged when -h is passed.
func LoadClient(args []string, getenv func(string) string, output io.Writer) (Client, error) {
	cfg := DefaultClient()
	var errs error

	cfg.BaseURL = envString(getenv, "USERDIR_BASE_URL", cfg.BaseURL)
	cfg.PageSize = envInt(getenv, "USERDIR_PAGE_SIZE", cfg.PageSize, &errs)
	cfg.SettleDelay = envDuration(getenv, "USERDIR_SETTLE_DELAY", cfg.SettleDelay, &errs)
	cfg.SearchScope = envString(getenv, "USERDIR_SEARCH_SCOPE", cfg.SearchScope)
	cfg.Timeout = envDuration(getenv, "USERDIR_TIMEOUT", cfg.Timeout, &errs)
	cfg.TokenURL = envString(getenv, "USERDIR_TOKEN_URL", "")
	cfg.ClientID = envString(getenv, "USERDIR_CLIENT_ID", "")
	cfg.ClientSecret = envString(getenv, "USERDIR_CLIENT_SECRET", "")
	cfg.LogLevel = envLevel(getenv, "USERDIR_LOG_LEVEL", cfg.LogLevel, &errs)
	cfg.LogFile = envString(getenv, "USERDIR_LOG_FILE", "")

	fs := flag.NewFlagSet("userdir", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "base URL of the user API")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "records revealed per page")
	fs.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "pause before a load-more completes, 0 for none")
	fs.StringVar(&cfg.SearchScope, "search-scope", cfg.SearchScope, "search scope: window or collection")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cfg, err
		}
		errs = multierr.Append(errs, err)
	}

	errs = multierr.Append(errs, cfg.validate())
	return cfg, wrap(errs)
}

func (c Client) validate() error {
	var errs error

	errs = multierr.Append(errs, validateHTTPURL("base URL", c.BaseURL))
	if c.PageSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.SettleDelay < 0 {
		errs = multierr.Append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay))
	}
	if c.SearchScope != ScopeWindow && c.SearchScope != ScopeCollection {
		errs = multierr.Append(errs, fmt.Errorf("search scope must be %q or %q, got %q",
			ScopeWindow, ScopeCollection, c.SearchScope))
	}
	if c.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}

	set := 0
	for _, v := range []string{c.TokenURL, c.ClientID, c.ClientSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		errs = multierr.Append(errs, errors.New("token URL, client ID and client secret must be set together"))
	}
	if c.TokenURL != "" {
		errs = multierr.Append(errs, validateHTTPURL("token URL", c.TokenURL))
	}

	return errs
}

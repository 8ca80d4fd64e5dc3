// Package config loads runtime settings for both executables.
//
// Settings come from environment variables first, the same way the server
// always read PORT and DB_PATH. The terminal client additionally accepts
// command-line flags that override the environment, so a one-off run can tweak
// the page size without exporting anything.
//
// All problems are collected with multierr and reported together, instead of
// failing on the first bad variable and making the user fix them one by one.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ErrInvalidConfig is the root of every error returned by this package.
var ErrInvalidConfig = errors.New("invalid configuration")

// getenvFunc matches os.Getenv. Tests pass a map lookup instead.
type getenvFunc func(string) string

func envString(getenv getenvFunc, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(getenv getenvFunc, key string, def int, errs *error) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func envDuration(getenv getenvFunc, key string, def time.Duration, errs *error) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func envLevel(getenv getenvFunc, key string, def slog.Level, errs *error) slog.Level {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %q is not a log level", key, v))
		return def
	}
	return lvl
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	return nil
}

// wrap tags an aggregated error with ErrInvalidConfig so callers can test for
// it with errors.Is without caring about the individual problems.
func wrap(errs error) error {
	if errs == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
}

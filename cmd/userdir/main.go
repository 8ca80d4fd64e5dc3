// Package main is the terminal user directory client.
//
// It browses the users of a JSONPlaceholder-compatible API: a paginated,
// searchable list and a detail screen per user. Point it at cmd/usersapi
// with -base-url to use the local stand-in server, and add the OAuth2
// client credentials when that server has auth enabled.
//
// Configuration comes from USERDIR_* environment variables; flags override
// them. Run with -h for the list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/term"

	"github.com/sakif/user-directory/internal/config"
	"github.com/sakif/user-directory/internal/store"
	"github.com/sakif/user-directory/internal/tui"
	"github.com/sakif/user-directory/internal/userapi"
	"github.com/sakif/user-directory/internal/view"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "userdir:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// === 1. CONFIGURATION ===
	cfg, err := config.LoadClient(args, os.Getenv, os.Stderr)
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	// The terminal belongs to the UI. Without a log file, logs reach stderr
	// only when it is redirected.
	logOut, closeLog, err := logOutput(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	scope, err := view.ParseFilterScope(cfg.SearchScope)
	if err != nil {
		return err
	}

	// === 3. API CLIENT ===
	opts := userapi.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Version: version,
		Logger:  logger,
	}
	if cfg.HasCredentials() {
		opts.Credentials = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
	}
	api, err := userapi.New(opts)
	if err != nil {
		return err
	}

	// === 4. STATE AND SCREENS ===
	users := store.New(api, logger)
	defer users.Close()

	// -settle-delay=0 asks for an immediate load-more, not the default.
	settle := cfg.SettleDelay
	if settle == 0 {
		settle = view.NoSettleDelay
	}

	list := view.NewListController(users, view.ListOptions{
		PageSize:    cfg.PageSize,
		SettleDelay: settle,
		Scope:       scope,
		Logger:      logger,
	})
	defer list.Close()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	app := tui.New(list, func(id int) *view.DetailController {
		return view.NewDetailController(api, id, logger)
	}, tui.Options{
		In:     os.Stdin,
		Out:    os.Stdout,
		Width:  tui.TerminalWidth(os.Stdout),
		Clear:  interactive,
		Logger: logger,
	})

	// === 5. RUN ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("userdir starting",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("page_size", cfg.PageSize),
		slog.String("search_scope", scope.String()),
		slog.Bool("oauth", cfg.HasCredentials()),
	)
	return app.Run(ctx)
}

// logOutput picks the log destination.
func logOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
			return io.Discard, func() {}, nil
		}
		return os.Stderr, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

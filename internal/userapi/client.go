// Package userapi is the client for the remote user directory API.
//
// It exposes the two read operations the app needs:
//
//	GET <base>/users       → FetchAllUsers
//	GET <base>/users/{id}  → FetchUserByID
//
// ERROR CONTRACT:
// Every failure, whether a transport error, a non-2xx status (404 included),
// an undecodable body, or a collection that breaks the id invariants, comes
// back as an *apperror.AppError wrapping apperror.ErrRemote. Callers test with
// errors.Is(err, apperror.ErrRemote) and never need to know which one it was.
//
// Each call makes exactly one attempt. Retrying is the caller's decision.
package userapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/httpclient"
	"github.com/sakif/user-directory/internal/model"
)

// maxErrorBody bounds how much of a failed response we read for the log.
const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	BaseURL string        // e.g. https://jsonplaceholder.typicode.com
	Timeout time.Duration // per request, 0 means none

	App     string // User-Agent app name, default "userdir"
	Version string // User-Agent version, default "dev"

	// Transport is the innermost round tripper. nil uses a pooled transport.
	// Tests pass an httpclient.MockTransport.
	Transport http.RoundTripper

	// Credentials enables the OAuth2 client_credentials grant. The token
	// request goes through Transport too.
	Credentials *clientcredentials.Config

	Logger *slog.Logger
}

// Client talks to the user API.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New builds a Client. It fails only when BaseURL cannot be parsed.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("userapi: parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("userapi: base URL %q must be absolute", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.App == "" {
		opts.App = "userdir"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	var transport http.RoundTripper = opts.Transport
	if transport == nil {
		transport = httpclient.PooledTransport()
	}

	if opts.Credentials != nil {
		// The oauth2 package fetches tokens with the *http.Client stored in
		// the context under oauth2.HTTPClient.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient,
			&http.Client{Transport: transport, Timeout: opts.Timeout})
		transport = &oauth2.Transport{
			Source: opts.Credentials.TokenSource(tokenCtx),
			Base:   transport,
		}
	}

	hc := httpclient.New(transport, opts.Timeout)
	hc.Use(
		httpclient.UserAgent(opts.App, opts.Version),
		httpclient.RequestID(),
		httpclient.Logging(logger),
	)

	return &Client{
		base:   base,
		http:   hc.HTTPClient,
		logger: logger,
	}, nil
}

// FetchAllUsers returns the whole collection in server order.
// An empty collection is returned as a non-nil empty slice.
func (c *Client) FetchAllUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.getJSON(ctx, c.base.JoinPath("users"), &users); err != nil {
		return nil, err
	}
	if err := model.ValidateCollection(users); err != nil {
		return nil, apperror.Remote("userapi: malformed user collection", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// FetchUserByID returns one user. A missing user is reported as a remote
// error like any other failure.
func (c *Client) FetchUserByID(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	if err := c.getJSON(ctx, c.base.JoinPath("users", strconv.Itoa(id)), &u); err != nil {
		return nil, err
	}
	if u.ID != id {
		return nil, apperror.Remote(fmt.Sprintf("userapi: asked for user %d, got %d", id, u.ID), nil)
	}
	return &u, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return apperror.Remote("userapi: building request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Remote("userapi: GET "+u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("user API returned an error",
			slog.String("path", u.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return apperror.Remote(fmt.Sprintf("userapi: GET %s: unexpected status %d", u.Path, resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperror.Remote("userapi: decoding "+u.Path, err)
	}
	return nil
}

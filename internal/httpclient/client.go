// Package httpclient provides an *http.Client whose round trips pass through a
// chain of middleware, much like chi does for incoming requests.
//
// THE CHAIN:
// A Responder is one round trip. A MiddlewareFunc wraps a Responder and returns
// a new one, so cross-cutting behaviour (user agent, request id, logging) is
// added without touching the code that builds requests:
//
//	c := httpclient.New(httpclient.PooledTransport(), 10*time.Second)
//	c.Use(httpclient.UserAgent("userdir", "1.0"), httpclient.Logging(logger))
//	resp, err := c.HTTPClient.Get(url)
//
// Middleware runs in the order it was added: the first one sees the request
// first and the response last.
package httpclient

import (
	"net/http"
	"sync"
	"time"
)

// Responder performs a single round trip.
type Responder func(*http.Request) (*http.Response, error)

// MiddlewareFunc wraps the next Responder in the chain.
type MiddlewareFunc func(next Responder) Responder

// Client is an http.RoundTripper that runs requests through the middleware
// chain before handing them to the underlying transport.
type Client struct {
	// HTTPClient uses this Client as its transport. Hand it to code that
	// expects a plain *http.Client.
	HTTPClient *http.Client

	base http.RoundTripper

	mu         sync.RWMutex
	middleware []MiddlewareFunc
}

// New creates a Client on top of transport. A nil transport falls back to
// http.DefaultTransport. timeout bounds every request made via HTTPClient;
// zero means no limit.
func New(transport http.RoundTripper, timeout time.Duration) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	c := &Client{base: transport}
	c.HTTPClient = &http.Client{Transport: c, Timeout: timeout}
	return c
}

// Use appends middleware to the chain.
func (c *Client) Use(middleware ...MiddlewareFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware...)
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	chain := applyMiddleware(c.base.RoundTrip, c.middleware...)
	c.mu.RUnlock()
	return chain(req)
}

func applyMiddleware(h Responder, middleware ...MiddlewareFunc) Responder {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

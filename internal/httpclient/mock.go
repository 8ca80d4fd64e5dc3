package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrNoResponder is returned by MockTransport for requests nobody registered.
// To the caller it looks like a network failure.
var ErrNoResponder = errors.New("httpclient: no responder found")

// MockTransport is an http.RoundTripper that answers from a table of
// registered responders instead of touching the network. Tests in other
// packages build a Client on top of it.
type MockTransport struct {
	mu         sync.Mutex
	responders map[string]Responder
	calls      map[string]int
}

// NewMockTransport returns an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responders: map[string]Responder{},
		calls:      map[string]int{},
	}
}

func roundTripKey(method, url string) string {
	return fmt.Sprintf("%s %s", method, url)
}

// RegisterResponder answers requests matching method and the full URL.
func (m *MockTransport) RegisterResponder(method, url string, r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders[roundTripKey(method, url)] = r
}

// Calls reports how many requests hit method and url.
func (m *MockTransport) Calls(method, url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[roundTripKey(method, url)]
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := roundTripKey(req.Method, req.URL.String())

	m.mu.Lock()
	r, ok := m.responders[key]
	m.calls[key]++
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResponder, key)
	}
	return r(req)
}

// JSONResponder answers with status and body encoded as JSON.
func JSONResponder(status int, body any) Responder {
	return func(req *http.Request) (*http.Response, error) {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		return newResponse(req, status, data), nil
	}
}

// StringResponder answers with status and a raw body.
func StringResponder(status int, body string) Responder {
	return func(req *http.Request) (*http.Response, error) {
		return newResponse(req, status, []byte(body)), nil
	}
}

// ErrorResponder fails the round trip with err.
func ErrorResponder(err error) Responder {
	return func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}

func newResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

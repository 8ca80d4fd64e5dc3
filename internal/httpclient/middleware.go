package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
)

// RequestIDHeader carries the per-request id. chi's RequestID middleware on
// the server side picks it up, so client and server logs line up.
const RequestIDHeader = "X-Request-Id"

// UserAgent sets the User-Agent header to "app/version".
func UserAgent(app, version string) MiddlewareFunc {
	ua := fmt.Sprintf("%s/%s", app, version)
	return func(next Responder) Responder {
		return func(req *http.Request) (*http.Response, error) {
			req.Header.Set("User-Agent", ua)
			return next(req)
		}
	}
}

// RequestID stamps every request with a fresh xid unless the caller already
// set one.
func RequestID() MiddlewareFunc {
	return func(next Responder) Responder {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, xid.New().String())
			}
			return next(req)
		}
	}
}

// Logging logs every round trip at debug level, and failures at warn.
func Logging(logger *slog.Logger) MiddlewareFunc {
	return func(next Responder) Responder {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)

			attrs := []any{
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.String("request_id", req.Header.Get(RequestIDHeader)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("request failed", append(attrs, slog.String("error", err.Error()))...)
				return nil, err
			}
			logger.Debug("request completed", append(attrs, slog.Int("status", resp.StatusCode))...)
			return resp, nil
		}
	}
}

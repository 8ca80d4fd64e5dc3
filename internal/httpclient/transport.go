package httpclient

import (
	"net"
	"net/http"
	"runtime"
	"time"
)

// PooledTransport returns an http.Transport with the same defaults as
// http.DefaultTransport but not shared with the rest of the process.
// Reuse it for the lifetime of the client; creating one per request leaks
// idle connections.
func PooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   runtime.GOMAXPROCS(0) + 1,
	}
}

// Package http builds the per-session HTTP clients used to talk to the
// university portals.
package http

import (
	"net"
	"net/http"
	"time"
)

// Default headers mimicking a common desktop browser. The upstream portals
// gate on these and serve degraded or blocked pages without them.
const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	defaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// SessionClients is the pair of HTTP clients owned by one session. Both
// share a single transport and cookie jar so they observe the same cookies;
// Standard follows redirects automatically, Inspect stops at each hop so
// the SSO flow can read every Location header.
type SessionClients struct {
	Standard *http.Client
	Inspect  *http.Client

	transport *http.Transport
	closed    bool
}

// Close releases the shared transport's idle connections. Safe to call
// more than once.
func (c *SessionClients) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.transport.CloseIdleConnections()
}

// headerTransport injects the browser default headers into every request
// that does not already carry them.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", defaultAccept)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", defaultAcceptLanguage)
	}
	return t.base.RoundTrip(req)
}

// NewSessionClients creates the client pair for one session, bound to the
// given cookie jar.
//
// Configuration:
//   - Dialer.Timeout: TCP connect timeout (10s)
//   - Client.Timeout: whole-request timeout (30s)
//   - Jar: the session's persistent cookie store
//
// http.DefaultClient has no timeout, so a custom client is always used.
func NewSessionClients(jar http.CookieJar) *SessionClients {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	rt := &headerTransport{base: t}
	return &SessionClients{
		Standard: &http.Client{
			Timeout:   30 * time.Second,
			Transport: rt,
			Jar:       jar,
		},
		Inspect: &http.Client{
			Timeout:   30 * time.Second,
			Transport: rt,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport: t,
	}
}

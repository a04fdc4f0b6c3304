package entity

import (
	"strings"
	"time"
)

// Cookie is one stored cookie row, owned by a single user.
// Uniqueness is (Username, Name, Domain, Path).
type Cookie struct {
	Username  string
	Name      string
	Value     string
	Domain    string
	Path      string
	ExpiresAt *time.Time // nil when the upstream set no Expires attribute
	Secure    bool
	HTTPOnly  bool
	MaxAge    int // seconds, -1 = unset
	CreatedAt time.Time
}

// Expired reports whether the cookie must no longer be sent at the given
// instant. A cookie expires when Expires has passed, or when MaxAge seconds
// have elapsed since it was stored.
func (c *Cookie) Expired(now time.Time) bool {
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return true
	}
	if c.MaxAge >= 0 && !c.CreatedAt.Add(time.Duration(c.MaxAge)*time.Second).After(now) {
		return true
	}
	return false
}

// MatchesHost reports whether the cookie domain covers the request host:
// equal, or the host ends with "." + domain. Comparison is case-insensitive
// and a leading dot on the stored domain is ignored (RFC 6265 5.2.3).
func (c *Cookie) MatchesHost(host string) bool {
	h := strings.ToLower(host)
	d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	return h == d || strings.HasSuffix(h, "."+d)
}

// MatchesPath reports whether the cookie path covers the request path.
// The cookie path is matched as a prefix with a trailing slash ensured, so
// path "/app" covers "/app/x" but not "/application".
func (c *Cookie) MatchesPath(path string) bool {
	cp := c.Path
	if cp == "" {
		cp = "/"
	}
	if path == cp {
		return true
	}
	if !strings.HasSuffix(cp, "/") {
		cp += "/"
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return strings.HasPrefix(path, cp)
}

// Matches reports whether the cookie should be attached to a request for
// the given host, path and scheme. Secure cookies are withheld from
// non-secure requests.
func (c *Cookie) Matches(host, path string, secure bool) bool {
	if c.Secure && !secure {
		return false
	}
	return c.MatchesHost(host) && c.MatchesPath(path)
}

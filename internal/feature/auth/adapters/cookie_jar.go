package adapters

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
	"campus_backend/internal/feature/auth/usecase"
)

// userJar adapts one user's slice of the durable cookie store to the
// http.CookieJar interface consumed by *http.Client. The jar itself is
// stateless; all state lives in the store under the jar's owner key.
type userJar struct {
	store usecase.CookieStore
	owner string
}

// Compile-time check to ensure userJar implements http.CookieJar.
var _ http.CookieJar = (*userJar)(nil)

// NewUserJar creates a cookie jar persisting into the store under the
// given owner key. The owner is either a username or a candidate scope.
func NewUserJar(store usecase.CookieStore, owner string) *userJar {
	return &userJar{store: store, owner: owner}
}

// SetCookies upserts the cookies the upstream server set on a response.
// Domain defaults to the request host and path to the request path when
// the server omitted them.
func (j *userJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	ctx := context.Background()
	for _, c := range cookies {
		rec := httpCookieToEntity(c, u)
		rec.Username = j.owner
		if err := j.store.Put(ctx, j.owner, rec); err != nil {
			slog.Warn("failed to persist cookie", "owner", j.owner, "cookie", c.Name, "error", err)
		}
	}
}

// Cookies returns the stored cookies matching an outgoing request.
func (j *userJar) Cookies(u *url.URL) []*http.Cookie {
	records, err := j.store.Get(context.Background(), j.owner, u)
	if err != nil {
		slog.Warn("failed to load cookies", "owner", j.owner, "url", u.Host, "error", err)
		return nil
	}
	out := make([]*http.Cookie, 0, len(records))
	for _, rec := range records {
		out = append(out, &http.Cookie{Name: rec.Name, Value: rec.Value})
	}
	return out
}

func httpCookieToEntity(c *http.Cookie, u *url.URL) *entity.Cookie {
	rec := &entity.Cookie{}
	rec.Name = c.Name
	rec.Value = c.Value
	// RFC 6265 5.2.3: a leading dot in the Domain attribute is ignored.
	// net/http hands the attribute over verbatim, dot included.
	rec.Domain = strings.TrimPrefix(c.Domain, ".")
	if rec.Domain == "" {
		rec.Domain = u.Hostname()
	}
	rec.Path = c.Path
	if rec.Path == "" {
		if p := defaultCookiePath(u.Path); p != "" {
			rec.Path = p
		} else {
			rec.Path = "/"
		}
	}
	rec.Secure = c.Secure
	rec.HTTPOnly = c.HttpOnly
	rec.MaxAge = -1
	if c.MaxAge != 0 {
		// net/http uses MaxAge < 0 for "delete now"; store that as an
		// immediately elapsed lifetime so the next read purges it.
		if c.MaxAge > 0 {
			rec.MaxAge = c.MaxAge
		} else {
			rec.MaxAge = 0
		}
	}
	if !c.Expires.IsZero() {
		t := c.Expires
		rec.ExpiresAt = &t
	}
	rec.CreatedAt = time.Now()
	return rec
}

// defaultCookiePath derives the default path for a cookie without a Path
// attribute: the request path up to its last slash.
func defaultCookiePath(reqPath string) string {
	if reqPath == "" || reqPath[0] != '/' {
		return "/"
	}
	i := len(reqPath) - 1
	for i > 0 && reqPath[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return reqPath[:i]
}

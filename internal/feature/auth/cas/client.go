package cas

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"campus_backend/internal/feature/auth/domain"
)

// maxRedirects caps the redirect chain after a credential submission; the
// IdP resolves a successful login in two or three hops, anything beyond
// ten is a loop.
const maxRedirects = 10

// maxBodyBytes bounds how much of an upstream page is read for parsing.
const maxBodyBytes = 1 << 20

// Client runs the CAS handshake over a candidate's redirect-inspecting
// HTTP client so every hop's Location header can be examined.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a CAS client. The http.Client must not follow
// redirects on its own.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, http: httpClient}
}

// FetchLoginPage GETs the IdP login page. When the IdP already trusts the
// candidate's cookies it answers with a token redirect instead of a form;
// that token is returned with a nil page (silent SSO).
func (c *Client) FetchLoginPage(ctx context.Context) (*LoginPage, string, error) {
	resp, err := c.get(ctx, c.cfg.LoginURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	token, resp, err := c.chaseRedirects(ctx, resp)
	if err != nil {
		return nil, "", err
	}
	if token != "" {
		drain(resp)
		return nil, token, nil
	}

	body, base, status, err := readPage(resp)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("%w: login page returned status %d", domain.ErrUpstreamUnavailable, status)
	}

	page, err := ParseLoginPage(base, body)
	if err != nil {
		return nil, "", err
	}
	return page, "", nil
}

// Submit posts the assembled login form and chases the redirect chain for
// the authentication token. The captcha answer, when given, is injected
// into whichever captcha field the form declared.
func (c *Client) Submit(ctx context.Context, page *LoginPage, username, password, captcha string) (string, error) {
	form := url.Values{}
	for name, vals := range page.Fields {
		for _, v := range vals {
			form.Add(name, v)
		}
	}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("execution", page.Execution)
	if captcha != "" {
		field := page.CaptchaField
		if field == "" {
			field = captchaFieldNames[0]
		}
		form.Set(field, captcha)
	}
	if form.Get("_eventId") == "" {
		form.Set("_eventId", "submit")
	}

	action := page.Action
	if action == "" {
		action = c.cfg.LoginURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.cfg.LoginURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	token, resp, err := c.chaseRedirects(ctx, resp)
	if err != nil {
		return "", err
	}
	if token != "" {
		drain(resp)
		return token, nil
	}

	// No token anywhere in the chain: read the final page and figure out
	// why the IdP bounced us.
	body, _, status, err := readPage(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if tip := FindErrorTip(body); tip != "" {
		return "", &domain.InvalidCredentialsError{Tip: tip}
	}
	slog.Warn("login submission ended without token",
		"status", status, "body", truncate(string(body), 256))
	return "", fmt.Errorf("%w: no token after submission, final status %d", domain.ErrProtocol, status)
}

// chaseRedirects follows the response's redirect chain one GET at a time,
// stopping as soon as a Location carries a token query parameter. The
// chain is capped at maxRedirects hops.
func (c *Client) chaseRedirects(ctx context.Context, resp *http.Response) (string, *http.Response, error) {
	for hops := 0; isRedirect(resp.StatusCode); hops++ {
		if hops >= maxRedirects {
			drain(resp)
			return "", nil, domain.ErrTooManyRedirects
		}
		loc, err := resolveLocation(resp)
		drain(resp)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
		}
		if token := loc.Query().Get("token"); token != "" {
			return token, nil, nil
		}
		resp, err = c.get(ctx, loc.String())
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
	}
	return "", resp, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// resolveLocation resolves the Location header against the request URL,
// handling relative redirects.
func resolveLocation(resp *http.Response) (*url.URL, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("redirect without Location, status %d", resp.StatusCode)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("bad Location %q: %v", loc, err)
	}
	return resp.Request.URL.ResolveReference(ref), nil
}

func readPage(resp *http.Response) (body []byte, base *url.URL, status int, err error) {
	defer drain(resp)
	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, 0, err
	}
	return body, resp.Request.URL, resp.StatusCode, nil
}

func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"campus_backend/internal/feature/auth/cas"
	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/domain/entity"
)

// JWTGenerator defines the app token generation dependency. Following Go
// convention the interface is defined by the consumer (usecase), not the
// provider (platform/jwt).
type JWTGenerator interface {
	// GenerateToken creates a signed app token for the given username.
	GenerateToken(username string) (string, error)
}

// PreloadResult is the outcome of a login preload: either the user is
// already authenticated, or the assembled state needed to submit
// credentials (and possibly a captcha answer) is returned.
type PreloadResult struct {
	AlreadyAuthenticated bool
	Identity             *entity.Identity
	CaptchaRequired      bool
	Captcha              *entity.Captcha
	Execution            string
}

// CaptchaResult is a refreshed captcha challenge with its paired
// execution token.
type CaptchaResult struct {
	Captcha   *entity.Captcha
	Execution string
}

// LoginResult is a successful login: the app bearer token and the
// derived identity.
type LoginResult struct {
	Token    string
	Identity entity.Identity
}

// StatusResult reports a live session's identity and timestamps.
type StatusResult struct {
	Identity        entity.Identity
	AuthenticatedAt time.Time
	LastActivity    time.Time
}

// LoginConfig holds the optional portal endpoints used around the CAS
// handshake.
type LoginConfig struct {
	// ProfileURL, when set, is fetched after a successful login to derive
	// the user's display name and school id. Failures only log.
	ProfileURL string
}

// loginUsecase orchestrates the CAS handshake on top of the session
// manager.
type loginUsecase struct {
	sessions *SessionManager
	casCfg   cas.Config
	cfg      LoginConfig
	tokens   JWTGenerator
}

// NewLoginUsecase creates a new instance of loginUsecase.
func NewLoginUsecase(sessions *SessionManager, casCfg cas.Config, cfg LoginConfig, tokens JWTGenerator) *loginUsecase {
	return &loginUsecase{sessions: sessions, casCfg: casCfg, cfg: cfg, tokens: tokens}
}

// PreloadLogin prepares a login attempt for the user. It reports an
// already-live session, a silently completed SSO, or the captcha/execution
// state the caller must echo back on the credential submission.
func (u *loginUsecase) PreloadLogin(ctx context.Context, username string) (*PreloadResult, error) {
	if sess := u.sessions.Get(ctx, username); sess != nil {
		id := sess.Identity
		return &PreloadResult{AlreadyAuthenticated: true, Identity: &id}, nil
	}

	cand := u.sessions.PrepareCandidate(ctx, username)
	casClient := cas.NewClient(u.casCfg, cand.Clients.Inspect)

	page, token, err := casClient.FetchLoginPage(ctx)
	if err != nil {
		u.sessions.Discard(ctx, cand)
		return nil, err
	}
	if token != "" {
		// Silent SSO: the IdP trusted the candidate's cookies.
		identity := u.fetchIdentity(ctx, cand.Clients.Standard, username)
		sess, err := u.sessions.Commit(ctx, cand, identity)
		if err != nil {
			return nil, err
		}
		id := sess.Identity
		slog.Info("silent SSO completed", "username", username)
		return &PreloadResult{AlreadyAuthenticated: true, Identity: &id}, nil
	}

	cand.Attempt = page
	res := &PreloadResult{Execution: page.Execution}
	if page.Captcha != nil {
		res.CaptchaRequired = true
		res.Captcha = page.Captcha
	}
	if meta, err := u.LastKnown(ctx, username); err == nil {
		// Not authenticated, but the user is known from an earlier
		// session that survived a restart.
		res.Identity = &entity.Identity{
			Username:    meta.Username,
			DisplayName: meta.DisplayName,
			SchoolID:    meta.SchoolID,
		}
	}
	return res, nil
}

// Login authenticates the user against the IdP. A pending candidate from a
// preload is reused when the caller echoes its execution token, so the
// captcha answer stays paired with the page it was issued for.
func (u *loginUsecase) Login(ctx context.Context, username, password, captcha, execution string) (*LoginResult, error) {
	cand := u.sessions.Pending(username)
	var page *cas.LoginPage
	if cand != nil && cand.Attempt != nil &&
		(execution == "" || execution == cand.Attempt.Execution) {
		page = cand.Attempt
	} else {
		cand = u.sessions.PrepareCandidate(ctx, username)
		casClient := cas.NewClient(u.casCfg, cand.Clients.Inspect)
		fresh, token, err := casClient.FetchLoginPage(ctx)
		if err != nil {
			u.sessions.Discard(ctx, cand)
			return nil, err
		}
		if token != "" {
			return u.promote(ctx, cand, username)
		}
		cand.Attempt = fresh
		page = fresh
	}

	if page.Captcha != nil && captcha == "" {
		// Pause the flow: the caller must come back with the answer and
		// this exact execution token.
		return nil, &domain.CaptchaRequiredError{Captcha: *page.Captcha, Execution: page.Execution}
	}

	casClient := cas.NewClient(u.casCfg, cand.Clients.Inspect)
	token, err := casClient.Submit(ctx, page, username, password, captcha)
	if err != nil {
		u.sessions.Discard(ctx, cand)
		return nil, err
	}
	slog.Debug("CAS issued token", "username", username, "token_len", len(token))

	return u.promote(ctx, cand, username)
}

// promote commits the candidate and issues the app token.
func (u *loginUsecase) promote(ctx context.Context, cand *Candidate, username string) (*LoginResult, error) {
	identity := u.fetchIdentity(ctx, cand.Clients.Standard, username)
	sess, err := u.sessions.Commit(ctx, cand, identity)
	if err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}

	appToken, err := u.tokens.GenerateToken(username)
	if err != nil {
		return nil, fmt.Errorf("issue app token: %w", err)
	}
	slog.Info("user login successful", "username", username)
	return &LoginResult{Token: appToken, Identity: sess.Identity}, nil
}

// RefreshCaptcha re-runs the page fetch on a fresh candidate, returning a
// new captcha descriptor (nil when the page stopped demanding one) with
// its execution token. Stored credentials are not touched.
func (u *loginUsecase) RefreshCaptcha(ctx context.Context, username string) (*CaptchaResult, error) {
	cand := u.sessions.PrepareCandidate(ctx, username)
	casClient := cas.NewClient(u.casCfg, cand.Clients.Inspect)

	page, token, err := casClient.FetchLoginPage(ctx)
	if err != nil {
		u.sessions.Discard(ctx, cand)
		return nil, err
	}
	if token != "" {
		// The IdP no longer wants a login at all; nothing to refresh.
		u.sessions.Discard(ctx, cand)
		return nil, fmt.Errorf("%w: already authenticated upstream", domain.ErrProtocol)
	}
	cand.Attempt = page
	return &CaptchaResult{Captcha: page.Captcha, Execution: page.Execution}, nil
}

// Status returns the live session's identity and timestamps, or
// ErrUnauthenticated when none exists.
func (u *loginUsecase) Status(ctx context.Context, username string) (*StatusResult, error) {
	sess := u.sessions.Get(ctx, username)
	if sess == nil {
		return nil, domain.ErrUnauthenticated
	}
	return &StatusResult{
		Identity:        sess.Identity,
		AuthenticatedAt: sess.AuthenticatedAt,
		LastActivity:    u.sessions.LastActivity(sess),
	}, nil
}

// LastKnown returns the durable metadata for a username, surviving
// restarts. Used to report a known-but-unauthenticated identity.
func (u *loginUsecase) LastKnown(ctx context.Context, username string) (*entity.SessionMeta, error) {
	if u.sessions.meta == nil {
		return nil, ErrMetaNotFound
	}
	return u.sessions.meta.Find(ctx, username)
}

// Logout removes and disposes the user's session.
func (u *loginUsecase) Logout(ctx context.Context, username string) error {
	u.sessions.Invalidate(ctx, username)
	slog.Info("user logged out", "username", username)
	return nil
}

// fetchIdentity derives the upstream identity from the portal profile
// endpoint. A failing profile fetch never blocks a successful login; it
// only logs.
func (u *loginUsecase) fetchIdentity(ctx context.Context, client *http.Client, username string) entity.Identity {
	identity := entity.Identity{Username: username}
	if u.cfg.ProfileURL == "" {
		return identity
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.ProfileURL, nil)
	if err != nil {
		slog.Warn("profile request build failed", "username", username, "error", err)
		return identity
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("profile fetch failed", "username", username, "error", err)
		return identity
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("profile fetch returned non-200", "username", username, "status", resp.StatusCode)
		return identity
	}

	var profile struct {
		Name     string `json:"name"`
		SchoolID string `json:"schoolId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Warn("profile decode failed", "username", username, "error", err)
		return identity
	}
	identity.DisplayName = profile.Name
	identity.SchoolID = profile.SchoolID
	return identity
}

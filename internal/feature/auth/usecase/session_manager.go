// Package usecase implements the business logic of the auth feature: the
// per-user session registry and the SSO login orchestration.
package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"campus_backend/internal/feature/auth/cas"
	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/domain/entity"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the idle timeout after which a session is expired.
const DefaultSessionTTL = 30 * time.Minute

// CookieStore abstracts the durable per-user cookie table. Following Go
// convention the interface is defined by the consumer (usecase), not the
// provider (adapters).
type CookieStore interface {
	// Put upserts a cookie by (username, name, domain, path).
	Put(ctx context.Context, username string, c *entity.Cookie) error
	// Get returns the non-expired cookies matching an outgoing request,
	// purging expired rows it encounters.
	Get(ctx context.Context, username string, u *url.URL) ([]*entity.Cookie, error)
	// Clear deletes all cookies for the user.
	Clear(ctx context.Context, username string) error
	// Migrate re-keys all cookies from one owner to another.
	Migrate(ctx context.Context, oldUsername, newUsername string) error
}

// SessionMetaStore abstracts the durable session metadata table.
type SessionMetaStore interface {
	Save(ctx context.Context, meta *entity.SessionMeta) error
	Find(ctx context.Context, username string) (*entity.SessionMeta, error)
	Touch(ctx context.Context, username string, at time.Time) error
	Delete(ctx context.Context, username string) error
}

// SessionClients is the HTTP client pair owned by one session or candidate.
// Standard follows redirects; Inspect surfaces each hop to the caller.
// Close releases the underlying transport and must be called exactly once
// per pair when the owner is disposed.
type SessionClients struct {
	Standard *http.Client
	Inspect  *http.Client
	Close    func()
}

// ClientFactory builds an isolated client pair whose cookies persist under
// the given owner key.
type ClientFactory func(owner string) *SessionClients

// Session is one authenticated user's live connection to the upstream
// systems. Its clients and cookie scope are never shared across usernames.
type Session struct {
	Username        string
	Identity        entity.Identity
	Clients         *SessionClients
	AuthenticatedAt time.Time

	lastActivity time.Time // guarded by the manager's mutex
}

// Candidate is a freshly allocated client + cookie scope used during a
// login attempt, before promotion to a full Session. Its cookies live
// under the Owner key until Commit migrates them to the username.
type Candidate struct {
	Username  string
	Owner     string
	Clients   *SessionClients
	CreatedAt time.Time

	// Attempt carries the parsed login page of a paused flow so a captcha
	// retry reuses the same execution token and CAS-side cookies.
	Attempt *cas.LoginPage
}

// SessionManager owns every live session and pending login candidate,
// keyed by username. All map mutation happens under one mutex; network
// I/O never runs under it, so sessions for different users proceed in
// parallel.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*Candidate

	cookies CookieStore
	meta    SessionMetaStore
	factory ClientFactory
	ttl     time.Duration
}

// NewSessionManager creates a session manager. A non-positive ttl falls
// back to DefaultSessionTTL.
func NewSessionManager(cookies CookieStore, meta SessionMetaStore, factory ClientFactory, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*Candidate),
		cookies:  cookies,
		meta:     meta,
		factory:  factory,
		ttl:      ttl,
	}
}

// TTL returns the configured idle timeout.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// PrepareCandidate allocates a fresh client pair bound to a fresh, empty
// cookie scope for a login attempt. Any previous pending candidate for the
// same username is discarded first.
func (m *SessionManager) PrepareCandidate(ctx context.Context, username string) *Candidate {
	cand := &Candidate{
		Username:  username,
		Owner:     "pending:" + uuid.NewString(),
		CreatedAt: time.Now(),
	}
	cand.Clients = m.factory(cand.Owner)

	m.mu.Lock()
	prev := m.pending[username]
	m.pending[username] = cand
	m.mu.Unlock()

	if prev != nil {
		m.disposeCandidate(ctx, prev)
	}
	return cand
}

// Pending returns the parked candidate for a username, if a login attempt
// is mid-flight (e.g. waiting for a captcha answer).
func (m *SessionManager) Pending(username string) *Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[username]
}

// Commit atomically promotes a candidate to the live session for its
// username. The candidate's cookies are migrated to the username scope and
// any previous session's clients are closed. Exactly one of two racing
// commits survives as the live session; the loser's clients are disposed
// by the winner's swap.
func (m *SessionManager) Commit(ctx context.Context, cand *Candidate, identity entity.Identity) (*Session, error) {
	// Replace whatever the username accumulated before with the cookies
	// of this attempt. A failed swap disposes the candidate; its clients
	// and cookie scope are unusable after this point either way.
	if err := m.cookies.Clear(ctx, cand.Username); err != nil {
		m.Discard(ctx, cand)
		return nil, err
	}
	if err := m.cookies.Migrate(ctx, cand.Owner, cand.Username); err != nil {
		m.Discard(ctx, cand)
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		Username:        cand.Username,
		Identity:        identity,
		Clients:         m.factory(cand.Username),
		AuthenticatedAt: now,
		lastActivity:    now,
	}

	m.mu.Lock()
	prev := m.sessions[cand.Username]
	m.sessions[cand.Username] = sess
	if m.pending[cand.Username] == cand {
		delete(m.pending, cand.Username)
	}
	m.mu.Unlock()

	// The candidate's clients were scoped to the pending owner and are no
	// longer usable after the migration.
	cand.Clients.Close()
	if prev != nil {
		prev.Clients.Close()
	}

	if m.meta != nil {
		if err := m.meta.Save(ctx, &entity.SessionMeta{
			Username:        cand.Username,
			DisplayName:     identity.DisplayName,
			SchoolID:        identity.SchoolID,
			AuthenticatedAt: now,
			LastActivity:    now,
		}); err != nil {
			slog.Warn("failed to persist session metadata", "username", cand.Username, "error", err)
		}
	}
	return sess, nil
}

// Discard disposes a candidate that will never be promoted: its clients
// are closed and its cookie scope deleted.
func (m *SessionManager) Discard(ctx context.Context, cand *Candidate) {
	m.mu.Lock()
	if m.pending[cand.Username] == cand {
		delete(m.pending, cand.Username)
	}
	m.mu.Unlock()
	m.disposeCandidate(ctx, cand)
}

func (m *SessionManager) disposeCandidate(ctx context.Context, cand *Candidate) {
	cand.Clients.Close()
	if err := m.cookies.Clear(ctx, cand.Owner); err != nil {
		slog.Warn("failed to clear candidate cookies", "owner", cand.Owner, "error", err)
	}
}

// Get returns the live session for a username, refreshing its
// last-activity timestamp. An expired session is disposed on the way and
// nil is returned.
func (m *SessionManager) Get(ctx context.Context, username string) *Session {
	now := time.Now()

	m.mu.Lock()
	sess := m.sessions[username]
	if sess == nil {
		m.mu.Unlock()
		return nil
	}
	if now.Sub(sess.lastActivity) > m.ttl {
		delete(m.sessions, username)
		m.mu.Unlock()
		sess.Clients.Close()
		slog.Info("session expired", "username", username)
		return nil
	}
	sess.lastActivity = now
	m.mu.Unlock()

	if m.meta != nil {
		if err := m.meta.Touch(ctx, username, now); err != nil {
			slog.Warn("failed to touch session metadata", "username", username, "error", err)
		}
	}
	return sess
}

// Require is Get but fails with ErrUnauthenticated when no live session
// exists.
func (m *SessionManager) Require(ctx context.Context, username string) (*Session, error) {
	if sess := m.Get(ctx, username); sess != nil {
		return sess, nil
	}
	return nil, domain.ErrUnauthenticated
}

// LastActivity returns the session's last-activity instant.
func (m *SessionManager) LastActivity(sess *Session) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sess.lastActivity
}

// Invalidate removes and disposes the session, if present, and deletes the
// user's cookies and metadata. Used on logout.
func (m *SessionManager) Invalidate(ctx context.Context, username string) {
	m.mu.Lock()
	sess := m.sessions[username]
	delete(m.sessions, username)
	m.mu.Unlock()

	if sess != nil {
		sess.Clients.Close()
	}
	if err := m.cookies.Clear(ctx, username); err != nil {
		slog.Warn("failed to clear cookies on logout", "username", username, "error", err)
	}
	if m.meta != nil {
		if err := m.meta.Delete(ctx, username); err != nil {
			slog.Warn("failed to delete session metadata", "username", username, "error", err)
		}
	}
}

// SweepExpired disposes and removes every expired session, returning how
// many were evicted. Intended to run on a timer.
func (m *SessionManager) SweepExpired(ctx context.Context) int {
	now := time.Now()

	m.mu.Lock()
	var evicted []*Session
	for username, sess := range m.sessions {
		if now.Sub(sess.lastActivity) > m.ttl {
			delete(m.sessions, username)
			evicted = append(evicted, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range evicted {
		sess.Clients.Close()
		slog.Info("session swept", "username", sess.Username)
	}
	return len(evicted)
}

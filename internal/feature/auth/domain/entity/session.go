package entity

import "time"

// Identity holds the upstream identity derived for an authenticated user.
// DisplayName and SchoolID come from a best-effort profile fetch and may be
// empty when the portal profile endpoint is unavailable.
type Identity struct {
	Username    string `json:"username"`    // SSO account name (identity key)
	DisplayName string `json:"displayName"` // Real name as reported by the portal
	SchoolID    string `json:"schoolId"`    // Student / staff number
}

// SessionMeta is the durable part of a session: identity plus timestamps.
// It survives process restarts; the live HTTP client and cookies are
// rebuilt in memory on the next login.
type SessionMeta struct {
	Username        string
	DisplayName     string
	SchoolID        string
	AuthenticatedAt time.Time
	LastActivity    time.Time
}

// ExpiredAt returns true if the session's last activity is older than ttl
// at the given instant.
func (m *SessionMeta) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(m.LastActivity) > ttl
}

package dto

import (
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
)

// PreloadResp reports the state of a prepared login attempt.
type PreloadResp struct {
	AlreadyAuthenticated bool             `json:"alreadyAuthenticated"`
	Identity             *entity.Identity `json:"identity,omitempty"`
	CaptchaRequired      bool             `json:"captchaRequired"`
	Captcha              *entity.Captcha  `json:"captcha,omitempty"`
	Execution            string           `json:"execution,omitempty"`
}

// LoginResp is a successful login: the app token and the upstream identity.
type LoginResp struct {
	Token    string          `json:"token"`
	Identity entity.Identity `json:"identity"`
}

// CaptchaResp is a refreshed captcha challenge with its execution token.
type CaptchaResp struct {
	Captcha   *entity.Captcha `json:"captcha"`
	Execution string          `json:"execution"`
}

// StatusResp describes the live session of the authenticated user.
type StatusResp struct {
	Identity        entity.Identity `json:"identity"`
	AuthenticatedAt time.Time       `json:"authenticatedAt"`
	LastActivity    time.Time       `json:"lastActivity"`
}

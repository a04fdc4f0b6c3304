// Package domain defines domain-level errors for the auth feature.
package domain

import (
	"errors"
	"fmt"

	"campus_backend/internal/feature/auth/domain/entity"
)

// Sentinel errors for authentication and session handling.
// Hard failures always propagate as one of these (possibly wrapped);
// nothing crosses the feature boundary unannounced.
var (
	// ErrUnauthenticated indicates no live session exists for the user.
	// The caller must run the login flow before retrying.
	ErrUnauthenticated = errors.New("no authenticated session")

	// ErrUpstreamUnavailable indicates a network failure, timeout or
	// unexpected status talking to an upstream portal. Retryable by the
	// caller after a delay; never retried automatically here.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrProtocol indicates the upstream page or response did not match
	// the shape the parser expected. Treated as a bug signal.
	ErrProtocol = errors.New("unexpected upstream response shape")

	// ErrTooManyRedirects indicates the SSO redirect chain exceeded the
	// hop cap without producing a token.
	ErrTooManyRedirects = errors.New("redirect chain exceeded hop limit")
)

// InvalidCredentialsError carries the upstream's own error tip text when the
// identity provider explicitly rejected the credentials or CAPTCHA answer.
type InvalidCredentialsError struct {
	Tip string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Tip == "" {
		return "invalid username or password"
	}
	return "invalid credentials: " + e.Tip
}

// CaptchaRequiredError is a control-flow signal, not a hard failure: the
// login page demands a CAPTCHA answer. The caller must resubmit with the
// same Execution token plus the solved value.
type CaptchaRequiredError struct {
	Captcha   entity.Captcha
	Execution string
}

func (e *CaptchaRequiredError) Error() string {
	return fmt.Sprintf("captcha required (type=%s)", e.Captcha.Type)
}

// Package handler provides the HTTP handlers of the auth feature.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus_backend/internal/api"
	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/transport/http/dto"
	"campus_backend/internal/feature/auth/usecase"
	jwtmw "campus_backend/internal/platform/jwt"
)

// AuthUsecase defines the login orchestration operations. Following Go
// convention the interface is defined by the consumer (handler), not the
// provider (usecase).
type AuthUsecase interface {
	PreloadLogin(ctx context.Context, username string) (*usecase.PreloadResult, error)
	Login(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error)
	RefreshCaptcha(ctx context.Context, username string) (*usecase.CaptchaResult, error)
	Status(ctx context.Context, username string) (*usecase.StatusResult, error)
	Logout(ctx context.Context, username string) error
}

// AuthHandler translates HTTP requests into login usecase calls and the
// domain error taxonomy into HTTP statuses.
type AuthHandler struct {
	auth AuthUsecase
}

// NewAuthHandler creates a new instance of AuthHandler.
func NewAuthHandler(auth AuthUsecase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Preload handles POST /api/auth/preload. It prepares a login attempt and
// reports whether the user is already authenticated or must solve a
// captcha before submitting credentials.
func (h *AuthHandler) Preload(c *gin.Context) {
	var req dto.PreloadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	res, err := h.auth.PreloadLogin(c.Request.Context(), req.Username)
	if err != nil {
		writeAuthError(c, req.Username, "preload", err)
		return
	}
	c.JSON(http.StatusOK, dto.PreloadResp{
		AlreadyAuthenticated: res.AlreadyAuthenticated,
		Identity:             res.Identity,
		CaptchaRequired:      res.CaptchaRequired,
		Captcha:              res.Captcha,
		Execution:            res.Execution,
	})
}

// Login handles POST /api/auth/login.
// - 400 on a malformed body
// - 401 with the upstream tip on rejected credentials
// - 428 with the challenge when a captcha answer is still missing
// - 200 with the app token on success
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, req.Captcha, req.Execution)
	if err != nil {
		writeAuthError(c, req.Username, "login", err)
		return
	}
	c.JSON(http.StatusOK, dto.LoginResp{Token: res.Token, Identity: res.Identity})
}

// RefreshCaptcha handles POST /api/auth/captcha, returning a fresh
// challenge paired with a new execution token.
func (h *AuthHandler) RefreshCaptcha(c *gin.Context) {
	var req dto.PreloadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	res, err := h.auth.RefreshCaptcha(c.Request.Context(), req.Username)
	if err != nil {
		writeAuthError(c, req.Username, "refresh captcha", err)
		return
	}
	c.JSON(http.StatusOK, dto.CaptchaResp{Captcha: res.Captcha, Execution: res.Execution})
}

// Status handles GET /api/auth/status for the authenticated user.
func (h *AuthHandler) Status(c *gin.Context) {
	username := jwtmw.Username(c)
	res, err := h.auth.Status(c.Request.Context(), username)
	if err != nil {
		writeAuthError(c, username, "status", err)
		return
	}
	c.JSON(http.StatusOK, dto.StatusResp{
		Identity:        res.Identity,
		AuthenticatedAt: res.AuthenticatedAt,
		LastActivity:    res.LastActivity,
	})
}

// Logout handles POST /api/auth/logout for the authenticated user.
func (h *AuthHandler) Logout(c *gin.Context) {
	username := jwtmw.Username(c)
	if err := h.auth.Logout(c.Request.Context(), username); err != nil {
		writeAuthError(c, username, "logout", err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "ok"})
}

// writeAuthError maps the auth error taxonomy onto HTTP statuses.
func writeAuthError(c *gin.Context, username, op string, err error) {
	var invalid *domain.InvalidCredentialsError
	var captcha *domain.CaptchaRequiredError
	switch {
	case errors.As(err, &invalid):
		slog.Warn("credentials rejected", "op", op, "username", username, "tip", invalid.Tip)
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid credentials", Tip: invalid.Tip})
	case errors.As(err, &captcha):
		c.JSON(http.StatusPreconditionRequired, dto.PreloadResp{
			CaptchaRequired: true,
			Captcha:         &captcha.Captcha,
			Execution:       captcha.Execution,
		})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "not authenticated"})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		slog.Warn("upstream unavailable", "op", op, "username", username, "error", err)
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "portal unavailable"})
	case errors.Is(err, domain.ErrTooManyRedirects), errors.Is(err, domain.ErrProtocol):
		slog.Error("portal protocol failure", "op", op, "username", username, "error", err)
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "portal protocol failure"})
	default:
		slog.Error("auth operation failed", "op", op, "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}

// Package handler provides the HTTP handlers of the bykc feature.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus_backend/internal/api"
	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/bykc"
	jwtmw "campus_backend/internal/platform/jwt"
)

// CourseService defines the per-user operations of the enrollment system
// that bypass the cache.
type CourseService interface {
	GetProfile(ctx context.Context, username string) (*bykc.Profile, error)
	QueryChosen(ctx context.Context, username string) ([]bykc.ChosenCourse, error)
	SignIn(ctx context.Context, username string, courseID int64) error
	SignOut(ctx context.Context, username string, courseID int64) error
	GetStatistics(ctx context.Context, username string) (*bykc.Statistics, error)
	Login(ctx context.Context, username string) (bool, error)
	Call(ctx context.Context, username, endpoint string, payload any) (json.RawMessage, error)
}

// CourseCatalog defines the shared-catalog operations, served through the
// caching decorator when Redis is configured.
type CourseCatalog interface {
	QueryCourses(ctx context.Context, username string, page, size int) (*bykc.CoursePage, error)
	GetConfig(ctx context.Context, username string) (bykc.SystemConfig, error)
	Enroll(ctx context.Context, username string, courseID int64) error
	Withdraw(ctx context.Context, username string, courseID int64) error
}

// BykcHandler translates HTTP requests into enrollment system calls.
type BykcHandler struct {
	svc     CourseService
	catalog CourseCatalog
}

// NewBykcHandler creates a new instance of BykcHandler.
func NewBykcHandler(svc CourseService, catalog CourseCatalog) *BykcHandler {
	return &BykcHandler{svc: svc, catalog: catalog}
}

// courseReq targets one course by id.
type courseReq struct {
	CourseID int64 `json:"courseId" binding:"required"`
}

// Login handles POST /api/bykc/login. It eagerly bridges the user's SSO
// session into the enrollment system, reporting whether a bearer token
// was captured; later calls bridge lazily either way.
func (h *BykcHandler) Login(c *gin.Context) {
	captured, err := h.svc.Login(c.Request.Context(), jwtmw.Username(c))
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokenCaptured": captured})
}

// Profile handles GET /api/bykc/profile.
func (h *BykcHandler) Profile(c *gin.Context) {
	res, err := h.svc.GetProfile(c.Request.Context(), jwtmw.Username(c))
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Courses handles GET /api/bykc/courses?page=1&size=20.
func (h *BykcHandler) Courses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := h.catalog.QueryCourses(c.Request.Context(), jwtmw.Username(c), page, size)
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Chosen handles GET /api/bykc/chosen.
func (h *BykcHandler) Chosen(c *gin.Context) {
	res, err := h.svc.QueryChosen(c.Request.Context(), jwtmw.Username(c))
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Enroll handles POST /api/bykc/enroll.
func (h *BykcHandler) Enroll(c *gin.Context) {
	h.courseAction(c, h.catalog.Enroll)
}

// Withdraw handles POST /api/bykc/withdraw.
func (h *BykcHandler) Withdraw(c *gin.Context) {
	h.courseAction(c, h.catalog.Withdraw)
}

// SignIn handles POST /api/bykc/signin.
func (h *BykcHandler) SignIn(c *gin.Context) {
	h.courseAction(c, h.svc.SignIn)
}

// SignOut handles POST /api/bykc/signout.
func (h *BykcHandler) SignOut(c *gin.Context) {
	h.courseAction(c, h.svc.SignOut)
}

func (h *BykcHandler) courseAction(c *gin.Context, fn func(ctx context.Context, username string, courseID int64) error) {
	var req courseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	if err := fn(c.Request.Context(), jwtmw.Username(c), req.CourseID); err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "ok"})
}

// Config handles GET /api/bykc/config.
func (h *BykcHandler) Config(c *gin.Context) {
	res, err := h.catalog.GetConfig(c.Request.Context(), jwtmw.Username(c))
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Statistics handles GET /api/bykc/statistics.
func (h *BykcHandler) Statistics(c *gin.Context) {
	res, err := h.svc.GetStatistics(c.Request.Context(), jwtmw.Username(c))
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var endpointNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

// Call handles POST /api/bykc/call/:endpoint, forwarding an arbitrary
// request body to the named upstream endpoint. The body must be a JSON
// object or empty.
func (h *BykcHandler) Call(c *gin.Context) {
	endpoint := c.Param("endpoint")
	if !endpointNameRe.MatchString(endpoint) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid endpoint name"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	var payload any
	if len(body) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "body must be a JSON object"})
			return
		}
		payload = obj
	}

	data, err := h.svc.Call(c.Request.Context(), jwtmw.Username(c), endpoint, payload)
	if err != nil {
		writeBykcError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// writeBykcError maps enrollment system errors onto HTTP statuses.
func writeBykcError(c *gin.Context, err error) {
	var upstream *bykc.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, bykc.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "not authenticated"})
	case errors.Is(err, bykc.ErrAlreadyEnrolled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "already enrolled"})
	case errors.Is(err, bykc.ErrCourseFull):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "course full"})
	case errors.Is(err, bykc.ErrNotSelectable):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "course not selectable"})
	case errors.As(err, &upstream):
		slog.Warn("enrollment upstream error", "endpoint", upstream.Endpoint, "status", upstream.Status, "message", upstream.Message)
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "upstream error", Tip: upstream.Message})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "portal unavailable"})
	case errors.Is(err, domain.ErrProtocol), errors.Is(err, domain.ErrTooManyRedirects):
		slog.Error("enrollment protocol failure", "error", err)
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "portal protocol failure"})
	default:
		slog.Error("enrollment operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/domain/entity"
	"campus_backend/internal/feature/auth/usecase"
	jwtmw "campus_backend/internal/platform/jwt"
)

// mockAuthUsecase is a mock implementation of the AuthUsecase interface.
type mockAuthUsecase struct {
	PreloadFunc func(ctx context.Context, username string) (*usecase.PreloadResult, error)
	LoginFunc   func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error)
	RefreshFunc func(ctx context.Context, username string) (*usecase.CaptchaResult, error)
	StatusFunc  func(ctx context.Context, username string) (*usecase.StatusResult, error)
	LogoutFunc  func(ctx context.Context, username string) error
}

func (m *mockAuthUsecase) PreloadLogin(ctx context.Context, username string) (*usecase.PreloadResult, error) {
	return m.PreloadFunc(ctx, username)
}

func (m *mockAuthUsecase) Login(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
	return m.LoginFunc(ctx, username, password, captcha, execution)
}

func (m *mockAuthUsecase) RefreshCaptcha(ctx context.Context, username string) (*usecase.CaptchaResult, error) {
	return m.RefreshFunc(ctx, username)
}

func (m *mockAuthUsecase) Status(ctx context.Context, username string) (*usecase.StatusResult, error) {
	return m.StatusFunc(ctx, username)
}

func (m *mockAuthUsecase) Logout(ctx context.Context, username string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, username)
	}
	return nil
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body gin.H, username string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	if username != "" {
		c.Set(jwtmw.ContextUsername, username)
	}

	handler(c)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthHandler_Preload(t *testing.T) {
	tests := []struct {
		name           string
		body           gin.H
		preloadFunc    func(ctx context.Context, username string) (*usecase.PreloadResult, error)
		expectedStatus int
		check          func(t *testing.T, body map[string]any)
	}{
		{
			name: "fresh login needed",
			body: gin.H{"username": "alice"},
			preloadFunc: func(ctx context.Context, username string) (*usecase.PreloadResult, error) {
				return &usecase.PreloadResult{Execution: "e1s1"}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, false, body["alreadyAuthenticated"])
				assert.Equal(t, "e1s1", body["execution"])
			},
		},
		{
			name: "captcha demanded",
			body: gin.H{"username": "alice"},
			preloadFunc: func(ctx context.Context, username string) (*usecase.PreloadResult, error) {
				return &usecase.PreloadResult{
					CaptchaRequired: true,
					Captcha:         &entity.Captcha{ID: "cap-1", Type: "blockPuzzle"},
					Execution:       "e1s1",
				}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["captchaRequired"])
				captcha, ok := body["captcha"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "cap-1", captcha["id"])
			},
		},
		{
			name: "already authenticated",
			body: gin.H{"username": "alice"},
			preloadFunc: func(ctx context.Context, username string) (*usecase.PreloadResult, error) {
				return &usecase.PreloadResult{
					AlreadyAuthenticated: true,
					Identity:             &entity.Identity{Username: "alice", DisplayName: "张三"},
				}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["alreadyAuthenticated"])
			},
		},
		{
			name:           "missing username",
			body:           gin.H{},
			preloadFunc:    nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "portal down",
			body: gin.H{"username": "alice"},
			preloadFunc: func(ctx context.Context, username string) (*usecase.PreloadResult, error) {
				return nil, domain.ErrUpstreamUnavailable
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthUsecase{PreloadFunc: tt.preloadFunc})
			w := postJSON(t, h.Preload, tt.body, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.check != nil {
				tt.check(t, decodeBody(t, w))
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name           string
		body           gin.H
		loginFunc      func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error)
		expectedStatus int
		check          func(t *testing.T, body map[string]any)
	}{
		{
			name: "success issues app token",
			body: gin.H{"username": "alice", "password": "secret"},
			loginFunc: func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
				assert.Equal(t, "alice", username)
				assert.Equal(t, "secret", password)
				return &usecase.LoginResult{
					Token:    "app-token",
					Identity: entity.Identity{Username: "alice"},
				}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "app-token", body["token"])
			},
		},
		{
			name: "captcha answer forwarded",
			body: gin.H{"username": "alice", "password": "secret", "captcha": "ans", "execution": "e2s1"},
			loginFunc: func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
				assert.Equal(t, "ans", captcha)
				assert.Equal(t, "e2s1", execution)
				return &usecase.LoginResult{Token: "t", Identity: entity.Identity{Username: "alice"}}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "rejected credentials carry the portal tip",
			body: gin.H{"username": "alice", "password": "wrong"},
			loginFunc: func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
				return nil, &domain.InvalidCredentialsError{Tip: "用户名或密码错误"}
			},
			expectedStatus: http.StatusUnauthorized,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "invalid credentials", body["error"])
				assert.Equal(t, "用户名或密码错误", body["tip"])
			},
		},
		{
			name: "captcha required pauses the flow",
			body: gin.H{"username": "alice", "password": "secret"},
			loginFunc: func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
				return nil, &domain.CaptchaRequiredError{
					Captcha:   entity.Captcha{ID: "cap-2", Type: "blockPuzzle"},
					Execution: "e3s1",
				}
			},
			expectedStatus: http.StatusPreconditionRequired,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["captchaRequired"])
				assert.Equal(t, "e3s1", body["execution"])
			},
		},
		{
			name: "redirect loop reported as gateway failure",
			body: gin.H{"username": "alice", "password": "secret"},
			loginFunc: func(ctx context.Context, username, password, captcha, execution string) (*usecase.LoginResult, error) {
				return nil, domain.ErrTooManyRedirects
			},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "missing password",
			body:           gin.H{"username": "alice"},
			loginFunc:      nil,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthUsecase{LoginFunc: tt.loginFunc})
			w := postJSON(t, h.Login, tt.body, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.check != nil {
				tt.check(t, decodeBody(t, w))
			}
		})
	}
}

func TestAuthHandler_Status(t *testing.T) {
	now := time.Now()
	h := NewAuthHandler(&mockAuthUsecase{
		StatusFunc: func(ctx context.Context, username string) (*usecase.StatusResult, error) {
			assert.Equal(t, "alice", username)
			return &usecase.StatusResult{
				Identity:        entity.Identity{Username: "alice"},
				AuthenticatedAt: now,
				LastActivity:    now,
			}, nil
		},
	})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(jwtmw.ContextUsername, "alice")

	h.Status(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_Status_NoSession(t *testing.T) {
	h := NewAuthHandler(&mockAuthUsecase{
		StatusFunc: func(ctx context.Context, username string) (*usecase.StatusResult, error) {
			return nil, domain.ErrUnauthenticated
		},
	})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(jwtmw.ContextUsername, "alice")

	h.Status(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	var loggedOut string
	h := NewAuthHandler(&mockAuthUsecase{
		LogoutFunc: func(ctx context.Context, username string) error {
			loggedOut = username
			return nil
		},
	})

	w := postJSON(t, h.Logout, gin.H{}, "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", loggedOut)
}

package bykc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	authusecase "campus_backend/internal/feature/auth/usecase"
	"campus_backend/internal/feature/bykc/crypto"
)

// Sessions supplies an authenticated user's session. Following Go
// convention the interface is defined by the consumer, not the session
// manager.
type Sessions interface {
	Require(ctx context.Context, username string) (*authusecase.Session, error)
}

// bearerToken is one cached application token with its fetch time.
type bearerToken struct {
	value     string
	fetchedAt time.Time
}

// Service performs the enrollment system's encrypted RPC calls on top of
// users' sessions. Bearer tokens are cached per username inside the
// heuristic freshness window to avoid re-bridging on every call.
type Service struct {
	cfg      Config
	sessions Sessions
	codec    *crypto.Codec

	mu     sync.Mutex
	tokens map[string]bearerToken
}

// NewService creates a new enrollment system client.
func NewService(cfg Config, sessions Sessions, codec *crypto.Codec) *Service {
	if codec == nil {
		codec = crypto.Default()
	}
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		codec:    codec,
		tokens:   make(map[string]bearerToken),
	}
}

// Login performs the application-level login: GET the CAS bridge with the
// user's session client and capture the token from the final URL. Returns
// whether a token was captured; the call can still proceed without one
// when the cookies already carry the session.
func (s *Service) Login(ctx context.Context, username string) (bool, error) {
	sess, err := s.sessions.Require(ctx, username)
	if err != nil {
		return false, err
	}

	token, err := s.bridgeToken(ctx, sess.Clients.Standard, s.cfg.BridgeURL)
	if err != nil {
		return false, err
	}
	if token == "" && s.cfg.SecondaryBridgeURL != "" {
		// Best-effort probe; failures here never block the caller.
		if t, err := s.bridgeToken(ctx, sess.Clients.Standard, s.cfg.SecondaryBridgeURL); err == nil {
			token = t
		} else {
			slog.Debug("secondary bridge probe failed", "username", username, "error", err)
		}
	}

	if token == "" {
		slog.Info("bridge login yielded no token, relying on cookies", "username", username)
		return false, nil
	}

	s.mu.Lock()
	s.tokens[username] = bearerToken{value: token, fetchedAt: time.Now()}
	s.mu.Unlock()
	return true, nil
}

// bridgeToken GETs a bridge URL with redirects followed and extracts the
// token query parameter of the final URL.
func (s *Service) bridgeToken(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build bridge request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.Request.URL.Query().Get("token"), nil
}

// cachedToken returns the user's bearer token if still inside the
// freshness window.
func (s *Service) cachedToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[username]
	if !ok || time.Since(t.fetchedAt) > s.cfg.TokenTTL {
		return ""
	}
	return t.value
}

// Call performs one encrypted RPC: encrypt the request payload into the
// envelope, POST it with the crypto headers, decrypt the response with
// the envelope's single-use key, and unwrap the status envelope. The
// returned bytes are the endpoint-specific data JSON.
func (s *Service) Call(ctx context.Context, username, endpoint string, payload any) (json.RawMessage, error) {
	sess, err := s.sessions.Require(ctx, username)
	if err != nil {
		return nil, err
	}

	token := s.cachedToken(username)
	if token == "" {
		if _, err := s.Login(ctx, username); err != nil {
			return nil, err
		}
		token = s.cachedToken(username)
	}

	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	env, err := s.codec.EncryptRequest(body)
	if err != nil {
		return nil, fmt.Errorf("build envelope: %w", err)
	}
	defer func() {
		// The symmetric key is single-use; drop it as soon as the paired
		// response has been handled.
		for i := range env.Key {
			env.Key[i] = 0
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/sscv/"+endpoint, strings.NewReader(env.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("ak", env.AK)
	req.Header.Set("sk", env.SK)
	req.Header.Set("ts", strconv.FormatInt(env.Timestamp, 10))
	if token != "" {
		req.Header.Set("auth_token", token)
	}

	resp, err := sess.Clients.Standard.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bykc %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("bykc %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(raw)),
		}
	}

	plain, err := s.codec.DecryptResponse(strings.TrimSpace(string(raw)), env.Key)
	if err != nil {
		return nil, fmt.Errorf("bykc %s: %w", endpoint, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(plain, &envelope); err != nil {
		return nil, fmt.Errorf("bykc %s: parse response: %w", endpoint, err)
	}
	if envelope.Status != 0 {
		return nil, classifyMessage(endpoint, envelope.Status, envelope.Errmsg)
	}
	return envelope.Data, nil
}

package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_backend/internal/feature/auth/cas"
	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/domain/entity"
)

const idpFormPage = `<!DOCTYPE html>
<html><body>
<form action="/login" method="post">
  <input name="username" value=""/>
  <input name="password" value=""/>
  <input type="hidden" name="execution" value="e1s1"/>
  <input type="hidden" name="_eventId" value="submit"/>
</form>
</body></html>`

const idpCaptchaPage = `<!DOCTYPE html>
<html><body>
<form action="/login" method="post">
  <input name="username" value=""/>
  <input name="password" value=""/>
  <input name="captcha" value=""/>
  <input type="hidden" name="execution" value="e2s1"/>
</form>
<script>
  var config = {};
  config.captcha = {type: 'blockPuzzle', id: 'cap-7'};
</script>
</body></html>`

const idpRejectedPage = `<html><body>
<span class="errors">用户名或密码错误，请重新输入。</span>
</body></html>`

// fakeIdP is an identity provider accepting alice/secret (and the captcha
// answer "7" when its form carries a captcha).
type fakeIdP struct {
	srv     *httptest.Server
	captcha bool

	mu       sync.Mutex
	lastForm url.Values
}

func newFakeIdP(t *testing.T, captcha bool) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{captcha: captcha}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if idp.captcha {
				fmt.Fprint(w, idpCaptchaPage)
			} else {
				fmt.Fprint(w, idpFormPage)
			}
			return
		}
		require.NoError(t, r.ParseForm())
		idp.mu.Lock()
		idp.lastForm = r.PostForm
		idp.mu.Unlock()
		ok := r.PostFormValue("username") == "alice" && r.PostFormValue("password") == "secret"
		if idp.captcha {
			ok = ok && r.PostFormValue("captcha") == "7"
		}
		if ok {
			http.Redirect(w, r, "/app?token=tok-1", http.StatusFound)
			return
		}
		fmt.Fprint(w, idpRejectedPage)
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"Alice Liu","schoolId":"20373001"}`)
	})
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (idp *fakeIdP) submitted() url.Values {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.lastForm
}

// memoryMetaStore is an in-memory SessionMetaStore for tests.
type memoryMetaStore struct {
	mu   sync.Mutex
	rows map[string]entity.SessionMeta
}

func newMemoryMetaStore() *memoryMetaStore {
	return &memoryMetaStore{rows: make(map[string]entity.SessionMeta)}
}

func (s *memoryMetaStore) Save(_ context.Context, meta *entity.SessionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[meta.Username] = *meta
	return nil
}

func (s *memoryMetaStore) Find(_ context.Context, username string) (*entity.SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.rows[username]
	if !ok {
		return nil, ErrMetaNotFound
	}
	return &meta, nil
}

func (s *memoryMetaStore) Touch(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta, ok := s.rows[username]; ok {
		meta.LastActivity = at
		s.rows[username] = meta
	}
	return nil
}

func (s *memoryMetaStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, username)
	return nil
}

// stubTokens issues predictable app tokens.
type stubTokens struct{}

func (stubTokens) GenerateToken(username string) (string, error) {
	return "app-" + username, nil
}

// liveFactory builds real client pairs sharing one in-memory jar, the way
// production pairs share one persistent jar.
func liveFactory(owner string) *SessionClients {
	jar, _ := cookiejar.New(nil)
	return &SessionClients{
		Standard: &http.Client{Jar: jar},
		Inspect: &http.Client{Jar: jar, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}},
		Close: func() {},
	}
}

func newLoginTest(t *testing.T, idp *fakeIdP, profile bool) (*loginUsecase, *SessionManager, *memoryMetaStore) {
	t.Helper()
	meta := newMemoryMetaStore()
	sessions := NewSessionManager(newMemoryCookieStore(), meta, liveFactory, time.Minute)
	cfg := LoginConfig{}
	if profile {
		cfg.ProfileURL = idp.srv.URL + "/profile"
	}
	uc := NewLoginUsecase(sessions, cas.Config{LoginURL: idp.srv.URL + "/login"}, cfg, stubTokens{})
	return uc, sessions, meta
}

func TestPreloadLogin_FreshForm(t *testing.T) {
	uc, sessions, _ := newLoginTest(t, newFakeIdP(t, false), false)

	res, err := uc.PreloadLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyAuthenticated)
	assert.False(t, res.CaptchaRequired)
	assert.Equal(t, "e1s1", res.Execution)
	assert.NotNil(t, sessions.Pending("alice"), "candidate should be parked for the submission")
}

func TestPreloadLogin_CaptchaRequired(t *testing.T) {
	uc, _, _ := newLoginTest(t, newFakeIdP(t, true), false)

	res, err := uc.PreloadLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.CaptchaRequired)
	require.NotNil(t, res.Captcha)
	assert.Equal(t, "cap-7", res.Captcha.ID)
	assert.Equal(t, "e2s1", res.Execution)
}

func TestPreloadLogin_AlreadyAuthenticated(t *testing.T) {
	uc, _, _ := newLoginTest(t, newFakeIdP(t, false), false)

	_, err := uc.Login(context.Background(), "alice", "secret", "", "")
	require.NoError(t, err)

	res, err := uc.PreloadLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.AlreadyAuthenticated)
	require.NotNil(t, res.Identity)
	assert.Equal(t, "alice", res.Identity.Username)
}

func TestPreloadLogin_ReportsLastKnownIdentity(t *testing.T) {
	uc, _, meta := newLoginTest(t, newFakeIdP(t, false), false)
	require.NoError(t, meta.Save(context.Background(), &entity.SessionMeta{
		Username:    "alice",
		DisplayName: "Alice Liu",
		SchoolID:    "20373001",
	}))

	res, err := uc.PreloadLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyAuthenticated)
	require.NotNil(t, res.Identity)
	assert.Equal(t, "Alice Liu", res.Identity.DisplayName)
	assert.Equal(t, "20373001", res.Identity.SchoolID)
}

func TestLogin_Success(t *testing.T) {
	uc, sessions, meta := newLoginTest(t, newFakeIdP(t, false), true)

	res, err := uc.Login(context.Background(), "alice", "secret", "", "")
	require.NoError(t, err)
	assert.Equal(t, "app-alice", res.Token)
	assert.Equal(t, "Alice Liu", res.Identity.DisplayName)
	assert.Equal(t, "20373001", res.Identity.SchoolID)

	require.NotNil(t, sessions.Get(context.Background(), "alice"))
	saved, err := meta.Find(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liu", saved.DisplayName)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	uc, sessions, _ := newLoginTest(t, newFakeIdP(t, false), false)

	_, err := uc.Login(context.Background(), "alice", "wrong", "", "")
	var invalid *domain.InvalidCredentialsError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Tip, "用户名或密码错误")
	assert.Nil(t, sessions.Get(context.Background(), "alice"))
}

func TestLogin_CaptchaPausesFlow(t *testing.T) {
	uc, sessions, _ := newLoginTest(t, newFakeIdP(t, true), false)

	_, err := uc.Login(context.Background(), "alice", "secret", "", "")
	var captcha *domain.CaptchaRequiredError
	require.ErrorAs(t, err, &captcha)
	assert.Equal(t, "cap-7", captcha.Captcha.ID)
	assert.Equal(t, "e2s1", captcha.Execution)
	assert.NotNil(t, sessions.Pending("alice"), "paused attempt should stay parked")
}

func TestLogin_ReusesPendingExecution(t *testing.T) {
	idp := newFakeIdP(t, true)
	uc, _, _ := newLoginTest(t, idp, false)

	pre, err := uc.PreloadLogin(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, pre.CaptchaRequired)

	res, err := uc.Login(context.Background(), "alice", "secret", "7", pre.Execution)
	require.NoError(t, err)
	assert.Equal(t, "app-alice", res.Token)

	form := idp.submitted()
	require.NotNil(t, form)
	assert.Equal(t, pre.Execution, form.Get("execution"))
	assert.Equal(t, "7", form.Get("captcha"))
}

func TestLogin_SilentSSO(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app?token=silent-1", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sessions := NewSessionManager(newMemoryCookieStore(), newMemoryMetaStore(), liveFactory, time.Minute)
	uc := NewLoginUsecase(sessions, cas.Config{LoginURL: srv.URL + "/login"}, LoginConfig{}, stubTokens{})

	res, err := uc.Login(context.Background(), "alice", "secret", "", "")
	require.NoError(t, err)
	assert.Equal(t, "app-alice", res.Token)
	assert.NotNil(t, sessions.Get(context.Background(), "alice"))
}

func TestStatusAndLogout(t *testing.T) {
	uc, _, _ := newLoginTest(t, newFakeIdP(t, false), false)

	_, err := uc.Status(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = uc.Login(context.Background(), "alice", "secret", "", "")
	require.NoError(t, err)

	st, err := uc.Status(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", st.Identity.Username)
	assert.False(t, st.AuthenticatedAt.IsZero())
	assert.False(t, st.LastActivity.IsZero())

	require.NoError(t, uc.Logout(context.Background(), "alice"))
	_, err = uc.Status(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

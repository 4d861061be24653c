package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/internal/api/handler"
	"github.com/jon4hz/parley/internal/config"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/internal/tokenstore"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	ctx     context.Context
	backend *chatBackend
	store   tokenstore.Store
	manager *session.Manager
	sched   *scheduler.Scheduler
	web     *httptest.Server
	client  *http.Client
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctx = context.Background()

	backend, backendServer := newChatBackend(s.T())
	s.backend = backend

	cfg := &config.Config{
		Backend: &config.BackendConfig{URL: backendServer.URL, Timeout: 5 * time.Second},
		Web:     &config.WebConfig{Listen: "127.0.0.1:0", SessionKey: "test-secret-key", SessionMaxAge: 60},
		Avatar:  &config.AvatarConfig{Enabled: true, DefaultImage: "identicon", Size: 24},
	}
	client := chatapi.New(cfg.Backend)
	s.store = tokenstore.NewMemoryStore("token")
	s.manager = session.New(client, s.store)

	var err error

	s.sched, err = scheduler.New(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.sched.AddSingletonJob("revalidate-session", "Revalidate session", time.Hour, func(context.Context) error { return nil }, false))
	s.sched.Start()

	server, err := New(cfg, s.manager, client, s.sched, false)
	s.Require().NoError(err)
	s.web = httptest.NewServer(server.Handler())

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (s *ServerTestSuite) TearDownTest() {
	s.web.Close()
	s.NoError(s.sched.Stop())
	s.NoError(s.manager.Close())
}

// get follows redirects and returns the final path and body.
func (s *ServerTestSuite) get(path string) (string, string) {
	resp, err := s.client.Get(s.web.URL + path)
	s.Require().NoError(err)
	return s.read(resp)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrf returns the form token of the suite client's browser session.
func (s *ServerTestSuite) csrf() string {
	_, body := s.get("/login")
	m := csrfPattern.FindStringSubmatch(body)
	s.Require().Len(m, 2, "login form carries a csrf token")
	return m[1]
}

// post submits a form the way the rendered pages do, with the csrf token.
func (s *ServerTestSuite) post(path string, form url.Values) (string, string) {
	if form == nil {
		form = url.Values{}
	}
	form.Set(handler.CSRFField, s.csrf())
	resp, err := s.client.PostForm(s.web.URL+path, form)
	s.Require().NoError(err)
	return s.read(resp)
}

func (s *ServerTestSuite) read(resp *http.Response) (string, string) {
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	return resp.Request.URL.RequestURI(), string(body)
}

func (s *ServerTestSuite) login(username, password string) (string, string) {
	return s.post("/login", url.Values{"username": {username}, "password": {password}})
}

func (s *ServerTestSuite) TestHomeRequiresLogin() {
	path, body := s.get("/")
	s.Equal("/login", path)
	s.Contains(body, `action="/login"`)
}

func (s *ServerTestSuite) TestUnknownPathGoesHome() {
	path, _ := s.get("/does/not/exist")
	s.Equal("/login", path, "unknown path resolves to home, which requires login")

	s.login("alice", "secret")
	path, _ = s.get("/does/not/exist")
	s.Equal("/", path)
}

func (s *ServerTestSuite) TestLoginFailure() {
	path, body := s.login("alice", "wrong")
	s.Equal("/login", path)
	s.Contains(body, "Invalid username or password")
	s.False(s.manager.IsAuthenticated())

	// the flash is shown once
	_, body = s.get("/login")
	s.NotContains(body, "Invalid username or password")
}

func (s *ServerTestSuite) TestLoginShowsPeers() {
	path, body := s.login("alice", "secret")
	s.Equal("/", path)
	s.Contains(body, "<span>alice</span>")
	s.Contains(body, `href="/?peer=3"`)
	s.Contains(body, `href="/?peer=1"`)
	s.NotContains(body, `href="/?peer=2"`, "self is not listed")
	s.NotContains(body, `href="/admin"`)
	s.Contains(body, "https://www.gravatar.com/avatar/")

	token, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("token-alice", token)
}

func (s *ServerTestSuite) TestSendMessage() {
	s.login("alice", "secret")

	path, body := s.get("/?peer=3")
	s.Equal("/?peer=3", path)
	s.Contains(body, "No messages yet.")

	path, body = s.post("/messages/3", url.Values{"content": {"hello <bob>"}})
	s.Equal("/?peer=3", path)
	s.Contains(body, "<strong>Me:</strong> hello &lt;bob&gt;")
	s.Contains(body, "1 message")
	s.Equal(1, s.backend.messageCount())
}

func (s *ServerTestSuite) TestBlankMessageIsNotSent() {
	s.login("alice", "secret")

	path, body := s.post("/messages/3", url.Values{"content": {"   "}})
	s.Equal("/?peer=3", path)
	s.NotContains(body, "Failed to send message")
	s.Equal(0, s.backend.messageCount())
}

func (s *ServerTestSuite) TestConversationShowsPeerName() {
	s.login("bob", "hunter2")
	s.post("/messages/2", url.Values{"content": {"hi alice"}})
	s.post("/logout", nil)

	s.login("alice", "secret")
	_, body := s.get("/?peer=3")
	s.Contains(body, "<strong>bob:</strong> hi alice")
}

func (s *ServerTestSuite) TestInvalidPeerGoesHome() {
	s.login("alice", "secret")

	path, _ := s.get("/?peer=abc")
	s.Equal("/", path)
}

func (s *ServerTestSuite) TestAdminRequiresAdmin() {
	path, _ := s.get("/admin")
	s.Equal("/login", path)

	s.login("alice", "secret")
	path, _ = s.get("/admin")
	s.Equal("/", path)
}

func (s *ServerTestSuite) TestAdminRemovesUser() {
	s.login("root", "toor")

	path, body := s.get("/admin")
	s.Equal("/admin", path)
	s.Contains(body, "2 users")
	s.Contains(body, `action="/admin/users/2/delete"`)
	s.Contains(body, `onsubmit="return confirm('Remove this user?')"`)
	s.NotContains(body, `action="/admin/users/1/delete"`)

	path, body = s.post("/admin/users/2/delete", nil)
	s.Equal("/admin", path)
	s.Contains(body, "1 user")
	s.NotContains(body, `action="/admin/users/2/delete"`)
}

func (s *ServerTestSuite) TestAdminCannotRemoveSelf() {
	s.login("root", "toor")

	_, body := s.post("/admin/users/1/delete", nil)
	s.Contains(body, "You cannot remove yourself")
}

func (s *ServerTestSuite) TestAdminRemoveFailure() {
	s.login("root", "toor")

	_, body := s.post("/admin/users/42/delete", nil)
	s.Contains(body, "Failed to remove user")
}

func (s *ServerTestSuite) TestRegister() {
	path, body := s.post("/register", url.Values{"username": {"carol"}, "password": {"pw"}})
	s.Equal("/login", path)
	s.Contains(body, "Registered! You can now log in")
	s.False(s.manager.IsAuthenticated())

	path, _ = s.login("carol", "pw")
	s.Equal("/", path)
}

func (s *ServerTestSuite) TestRegisterDuplicate() {
	path, body := s.post("/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	s.Equal("/register", path)
	s.Contains(body, "Registration failed")
}

func (s *ServerTestSuite) TestLogout() {
	s.login("alice", "secret")

	path, _ := s.post("/logout", nil)
	s.Equal("/login", path)
	s.False(s.manager.IsAuthenticated())

	token, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(token)

	path, _ = s.get("/")
	s.Equal("/login", path)
}

func (s *ServerTestSuite) TestRestoresPersistedSession() {
	s.Require().NoError(s.store.Save(s.ctx, "token-root"))
	s.Require().NoError(s.manager.Open(s.ctx))

	path, body := s.get("/")
	s.Equal("/", path)
	s.Contains(body, `href="/admin"`)
}

func (s *ServerTestSuite) TestRejectedPersistedSession() {
	s.Require().NoError(s.store.Save(s.ctx, "token-revoked"))
	s.Require().NoError(s.manager.Open(s.ctx))

	path, _ := s.get("/")
	s.Equal("/login", path)

	token, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(token)
}

func (s *ServerTestSuite) TestLoginKeepsUsernameAsTyped() {
	s.backend.addUser(" carol", "pw")

	path, body := s.login(" carol", "pw")
	s.Equal("/", path)
	s.Contains(body, "<span> carol</span>")

	s.post("/logout", nil)
	path, _ = s.login("carol", "pw")
	s.Equal("/login", path)
}

func (s *ServerTestSuite) TestRegisterKeepsUsernameAsTyped() {
	path, _ := s.post("/register", url.Values{"username": {"dave "}, "password": {"pw"}})
	s.Equal("/login", path)

	path, _ = s.login("dave ", "pw")
	s.Equal("/", path)
}

func (s *ServerTestSuite) TestUnknownPeerShowsFallbackName() {
	s.backend.deliver(99, 2, "anyone there?")
	s.login("alice", "secret")

	path, body := s.get("/?peer=99")
	s.Equal("/?peer=99", path)
	s.Contains(body, "User 99</h3>")
	s.Contains(body, "<strong>User 99:</strong> anyone there?")
}

// rawPost sends a form without following redirects or adding a csrf token.
func (s *ServerTestSuite) rawPost(client *http.Client, path string, form url.Values, header http.Header) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.web.URL+path, strings.NewReader(form.Encode()))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	s.Require().NoError(err)
	s.Require().NoError(resp.Body.Close())
	return resp
}

func (s *ServerTestSuite) TestCrossSiteRemoveIsRejected() {
	s.login("root", "toor")

	other := &http.Client{Timeout: 5 * time.Second}
	resp := s.rawPost(other, "/admin/users/3/delete", url.Values{}, http.Header{"Origin": {"https://evil.example"}})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.rawPost(other, "/admin/users/3/delete", url.Values{}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode, "no session cookie, no token")

	_, body := s.get("/admin")
	s.Contains(body, `action="/admin/users/3/delete"`)
}

func (s *ServerTestSuite) TestPostWithoutTokenIsRejected() {
	s.login("alice", "secret")

	resp := s.rawPost(s.client, "/messages/3", url.Values{"content": {"hi"}}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal(0, s.backend.messageCount())

	resp = s.rawPost(s.client, "/messages/3", url.Values{"content": {"hi"}, handler.CSRFField: {"forged"}}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal(0, s.backend.messageCount())

	resp = s.rawPost(s.client, "/logout", url.Values{}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.True(s.manager.IsAuthenticated())
}

func (s *ServerTestSuite) TestCrossSiteHeadersAreRejected() {
	s.login("alice", "secret")
	form := url.Values{"content": {"hi"}, handler.CSRFField: {s.csrf()}}

	resp := s.rawPost(s.client, "/messages/3", form, http.Header{"Origin": {"https://evil.example"}})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.rawPost(s.client, "/messages/3", form, http.Header{"Sec-Fetch-Site": {"cross-site"}})
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal(0, s.backend.messageCount())

	resp = s.rawPost(s.client, "/messages/3", form, http.Header{
		"Origin":         {s.web.URL},
		"Sec-Fetch-Site": {"same-origin"},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.backend.messageCount())
}

func (s *ServerTestSuite) TestAdminPausesJob() {
	s.login("root", "toor")

	_, body := s.get("/admin")
	s.Contains(body, "Revalidate session")
	s.Contains(body, `action="/admin/jobs/revalidate-session/toggle"`)
	s.Contains(body, "Pause</button>")

	path, body := s.post("/admin/jobs/revalidate-session/toggle", nil)
	s.Equal("/admin", path)
	s.Contains(body, "Paused Revalidate session")
	s.Contains(body, "Resume</button>")
	job, ok := s.sched.GetJob("revalidate-session")
	s.Require().True(ok)
	s.False(job.Enabled)

	_, body = s.post("/admin/jobs/revalidate-session/toggle", nil)
	s.Contains(body, "Resumed Revalidate session")
	job, _ = s.sched.GetJob("revalidate-session")
	s.True(job.Enabled)

	_, body = s.post("/admin/jobs/missing/toggle", nil)
	s.Contains(body, "Unknown job")
}

func (s *ServerTestSuite) TestHealthz() {
	s.login("alice", "secret")

	resp, err := s.client.Get(s.web.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint:errcheck

	var health struct {
		Status        string `json:"status"`
		Authenticated bool   `json:"authenticated"`
		Generation    uint64 `json:"generation"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&health))
	s.Equal("ok", health.Status)
	s.True(health.Authenticated)
	s.Positive(health.Generation)
}

func (s *ServerTestSuite) TestResponsesAreCompressed() {
	req, err := http.NewRequest(http.MethodGet, s.web.URL+"/login", nil)
	s.Require().NoError(err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultTransport.RoundTrip(req)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint:errcheck

	s.Equal("gzip", resp.Header.Get("Content-Encoding"))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil, nil, nil, false)
	assert.ErrorContains(t, err, "config is required")

	_, err = New(&config.Config{Web: &config.WebConfig{}}, nil, nil, nil, false)
	assert.ErrorContains(t, err, "session is required")
}

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarrarian/dashboard/internal/config"
)

func newLoginTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	return &Server{
		cfg: config.Config{
			APIKey:            "shared-secret",
			AuthEnabled:       true,
			LocalLoginEnabled: true,
			LocalUser:         "admin",
		},
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		jwtSecret:         []byte("shared-secret"),
		localPasswordHash: hash,
	}
}

func TestHandleLogin_IssuesSessionCookie(t *testing.T) {
	s := newLoginTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	w := httptest.NewRecorder()
	s.handleLogin(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected a session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	// The issued cookie must satisfy operator auth.
	opReq := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	opReq.AddCookie(cookie)
	if !s.operatorAuthorized(opReq) {
		t.Error("expected the freshly issued cookie to authorize operator calls")
	}
}

func TestHandleLogin_RejectsBadCredentials(t *testing.T) {
	s := newLoginTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username":"admin","password":"wrong"}`},
		{"wrong user", `{"username":"intruder","password":"hunter2"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(c.body))
			w := httptest.NewRecorder()
			s.handleLogin(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("no cookie may be issued on a failed login")
			}
		})
	}
}

func TestHandleLogin_MissingFieldsAreInvalidInput(t *testing.T) {
	s := newLoginTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"admin"}`))
	w := httptest.NewRecorder()
	s.handleLogin(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a payload missing the password, got %d", w.Code)
	}
}

func TestHandleLogin_DisabledLocalLogin(t *testing.T) {
	s := newLoginTestServer(t)
	s.cfg.LocalLoginEnabled = false

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	w := httptest.NewRecorder()
	s.handleLogin(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 when local login is disabled, got %d", w.Code)
	}
}

func TestHandleLogout_ExpiresCookie(t *testing.T) {
	s := newLoginTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	w := httptest.NewRecorder()
	s.handleLogout(w, req)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected the session cookie to be rewritten")
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("expected a negative MaxAge to expire the cookie, got %d", cookie.MaxAge)
	}
}

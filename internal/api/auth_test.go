package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/librarrarian/dashboard/internal/config"
)

func newAuthTestServer() *Server {
	return &Server{
		cfg:       config.Config{APIKey: "shared-secret", AuthEnabled: true},
		jwtSecret: []byte("shared-secret"),
	}
}

func TestRequireAPIKey_MissingOrWrong(t *testing.T) {
	s := newAuthTestServer()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireAPIKey(next)

	req := httptest.NewRequest(http.MethodPost, "/api/register_worker", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Fatal("handler must not run without a valid API key")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireAPIKey_Valid(t *testing.T) {
	s := newAuthTestServer()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireAPIKey(next)

	req := httptest.NewRequest(http.MethodPost, "/api/register_worker", nil)
	req.Header.Set("X-API-Key", "shared-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("handler must run with a valid API key")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRequireAPIKey_VerifiedSessionCookieBypassesKeyCheck(t *testing.T) {
	s := newAuthTestServer()
	tok, err := s.issueSessionToken("operator")
	if err != nil {
		t.Fatalf("issueSessionToken() error = %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireAPIKey(next)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("a request carrying a verified session cookie must skip the API-key check")
	}
}

func TestRequireAPIKey_UnverifiedCookieDoesNotBypassKeyCheck(t *testing.T) {
	s := newAuthTestServer()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a forged cookie without an API key")
	})
	handler := s.requireAPIKey(next)

	req := httptest.NewRequest(http.MethodPost, "/api/register_worker", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "whatever"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a cookie that fails verification, got %d", w.Code)
	}
}

func TestRequireAPIKey_UnverifiedCookieStillAcceptsValidKey(t *testing.T) {
	s := newAuthTestServer()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireAPIKey(next)

	req := httptest.NewRequest(http.MethodPost, "/api/request_job", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "stale-or-garbage"})
	req.Header.Set("X-API-Key", "shared-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("a valid API key must still pass when an invalid cookie is also present")
	}
}

func TestRequireOperator_DisabledAuthAllowsAll(t *testing.T) {
	s := newAuthTestServer()
	s.cfg.AuthEnabled = false
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireOperator(next)

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected operator auth to be bypassed when AuthEnabled is false")
	}
}

func TestRequireOperator_RejectsMissingCredentials(t *testing.T) {
	s := newAuthTestServer()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})
	handler := s.requireOperator(next)

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireOperator_AcceptsAPIKey(t *testing.T) {
	s := newAuthTestServer()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireOperator(next)

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	req.Header.Set("X-API-Key", "shared-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected the API key to satisfy operator auth")
	}
}

func TestRequireOperator_AcceptsValidSessionCookie(t *testing.T) {
	s := newAuthTestServer()
	tok, err := s.issueSessionToken("operator")
	if err != nil {
		t.Fatalf("issueSessionToken() error = %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := s.requireOperator(next)

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected a valid session cookie to satisfy operator auth")
	}
}

func TestRequireOperator_RejectsTamperedCookie(t *testing.T) {
	s := newAuthTestServer()
	tok, err := s.issueSessionToken("operator")
	if err != nil {
		t.Fatalf("issueSessionToken() error = %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a tampered session token")
	})
	handler := s.requireOperator(next)

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok + "tampered"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a tampered cookie, got %d", w.Code)
	}
}

func TestVerifySessionToken_RejectsWrongSecret(t *testing.T) {
	s := newAuthTestServer()
	tok, err := s.issueSessionToken("operator")
	if err != nil {
		t.Fatalf("issueSessionToken() error = %v", err)
	}

	other := newAuthTestServer()
	other.jwtSecret = []byte("a-different-secret")
	if _, err := other.verifySessionToken(tok); err == nil {
		t.Error("expected verification to fail against a different signing secret")
	}
}

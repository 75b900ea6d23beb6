package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestAuthenticatedRouteAcceptsBearerAndCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	// 1) Missing token.
	resp := ts.do(t, http.MethodGet, "/api/profile", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", resp.StatusCode)
	}

	// 2) Unknown token.
	resp = ts.do(t, http.MethodGet, "/api/profile", "not-a-session", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown token expected 401, got %d", resp.StatusCode)
	}

	// 3) Bearer token.
	token := ts.signup(t, "machado")
	var profile map[string]any
	resp = ts.do(t, http.MethodGet, "/api/profile", token, nil, &profile)
	if resp.StatusCode != http.StatusOK || profile["username"] != "machado" {
		t.Fatalf("bearer expected 200 for machado, got %d %+v", resp.StatusCode, profile)
	}

	// 4) Session cookie.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "paginas_session", Value: token})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cookie request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cookie expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginSetsCookieAndLogoutRevokes(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.SessionCookieSecure = true })
	ts.signup(t, "clarice")

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "Clarice", "password": "segredo1"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "paginas_session" {
			session = c
		}
	}
	if session == nil || !session.HttpOnly || !session.Secure || session.Value == "" {
		t.Fatalf("expected secure HttpOnly session cookie, got %+v", session)
	}

	resp = ts.do(t, http.MethodPost, "/api/auth/logout", session.Value, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/profile", session.Value, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked session expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterAndLoginErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "jorge")

	var body errorResponse
	resp := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Outro", "username": "JORGE", "password": "segredo1", "confirmPassword": "segredo1",
	}, &body)
	if resp.StatusCode != http.StatusConflict || body.Code != "ALREADY_EXISTS" {
		t.Fatalf("duplicate username expected 409, got %d %+v", resp.StatusCode, body)
	}

	body = errorResponse{}
	resp = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "", "username": "ab", "password": "1", "confirmPassword": "2",
	}, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Code != "VALIDATION" {
		t.Fatalf("invalid register expected 400, got %d %+v", resp.StatusCode, body)
	}
	details, _ := body.Details.(map[string]any)
	for _, field := range []string{"name", "username", "password", "confirmPassword"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("missing detail for %s: %+v", field, details)
		}
	}

	body = errorResponse{}
	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "jorge", "password": "errada"}, &body)
	if resp.StatusCode != http.StatusUnauthorized || body.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("bad password expected 401, got %d %+v", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/login", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("bad json request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json expected 400, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/auth/login", "", nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET login expected 405, got %d", resp.StatusCode)
	}
}

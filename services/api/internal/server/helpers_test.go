package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"paginasamarelas/pkg/catalog"
	"paginasamarelas/pkg/storage"
	"paginasamarelas/pkg/store"
	"paginasamarelas/services/api/internal/app"
)

type stubCatalog struct {
	resp catalog.Response
	err  error
	last catalog.Query
}

func (s *stubCatalog) Search(_ context.Context, q catalog.Query) (catalog.Response, error) {
	s.last = q
	return s.resp, s.err
}

type testServer struct {
	*httptest.Server
	catalog   *stubCatalog
	uploadDir string
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dir := t.TempDir()
	files, err := storage.NewFileStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	stub := &stubCatalog{}
	core, err := app.New(context.Background(), app.Config{
		Store:        store.NewMemoryStore(),
		Sessions:     store.NewRedisSessionStore(client, time.Hour),
		Objects:      files,
		Catalog:      stub,
		FeedPageSize: 2,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{
		App:                        core,
		Redis:                      client,
		LoginRateLimitPerMinute:    100,
		RegisterRateLimitPerMinute: 100,
		SessionTTL:                 time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, catalog: stub, uploadDir: dir}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

// signup registers and logs in a user, returning the session token.
func (ts *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":            "Leitor " + username,
		"username":        username,
		"password":        "segredo1",
		"confirmPassword": "segredo1",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	var login authResponse
	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "segredo1",
	}, &login)
	if resp.StatusCode != http.StatusOK || login.Token == "" {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	return login.Token
}

func jsonDecode(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

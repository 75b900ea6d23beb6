package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"paginasamarelas/pkg/cache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoogleBooksSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("maxResults") != "3" || r.URL.Query().Get("key") != "k" {
			t.Errorf("unexpected params: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"id":"abc","volumeInfo":{"title":"Dom Casmurro","authors":["Machado de Assis"],"pageCount":256,
			 "publishedDate":"1899","language":"pt","imageLinks":{"thumbnail":"http://books.google.com/c.jpg"}}},
			{"id":"empty","volumeInfo":{"title":" "}}
		]}`)
	}))
	defer srv.Close()

	g := NewGoogleBooks("k", ClientOptions{BaseURL: srv.URL})
	items, err := g.Search(context.Background(), Query{Text: " Machado ", Mode: ModeAuthor, MaxResults: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotQuery != "inauthor:Machado" {
		t.Fatalf("unexpected q %q", gotQuery)
	}
	if len(items) != 1 {
		t.Fatalf("expected untitled volume dropped, got %d items", len(items))
	}
	it := items[0]
	if it.ExternalID != "google:abc" || it.PageCount != 256 || it.Source != "google" {
		t.Fatalf("unexpected result %+v", it)
	}
	if it.CoverURL != "https://books.google.com/c.jpg" {
		t.Fatalf("expected https cover, got %q", it.CoverURL)
	}
}

func TestOpenLibrarySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") != "O Cortiço" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected params: %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"numFound":1,"docs":[{"key":"/works/OL1W","title":"O Cortiço",
			"author_name":["Aluísio Azevedo"],"number_of_pages_median":240,"first_publish_year":1890,
			"cover_i":42,"language":["por"]}]}`)
	}))
	defer srv.Close()

	o := NewOpenLibrary(ClientOptions{BaseURL: srv.URL})
	items, err := o.Search(context.Background(), Query{Text: "O Cortiço", Mode: ModeTitle})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.ExternalID != "openlibrary:OL1W" || it.PublishedDate != "1890" || it.Language != "por" {
		t.Fatalf("unexpected result %+v", it)
	}
	if it.CoverURL != "https://covers.openlibrary.org/b/id/42-M.jpg" {
		t.Fatalf("unexpected cover %q", it.CoverURL)
	}
}

func TestProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleBooks("", ClientOptions{BaseURL: srv.URL}).Search(context.Background(), Query{Text: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

type fakeProvider struct {
	name  string
	items []Result
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(context.Context, Query) ([]Result, error) {
	f.calls.Add(1)
	return f.items, f.err
}

func TestChainFallsBackInOrder(t *testing.T) {
	failing := &fakeProvider{name: "google", err: errors.New("quota")}
	empty := &fakeProvider{name: "mirror"}
	hit := &fakeProvider{name: "openlibrary", items: []Result{{Title: "Iracema"}}}
	never := &fakeProvider{name: "never", items: []Result{{Title: "x"}}}

	resp, err := NewChain(quietLogger(), failing, empty, hit, never).Search(context.Background(), Query{Text: "iracema"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Source != "openlibrary" || resp.Total != 1 || resp.Items[0].Title != "Iracema" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if never.calls.Load() != 0 {
		t.Fatalf("providers after a hit must not be called")
	}
}

func TestChainAllFail(t *testing.T) {
	last := errors.New("second down")
	chain := NewChain(quietLogger(),
		&fakeProvider{name: "a", err: errors.New("first down")},
		&fakeProvider{name: "b", err: last},
	)
	if _, err := chain.Search(context.Background(), Query{Text: "x"}); !errors.Is(err, last) {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestChainEmptyIsNotAnError(t *testing.T) {
	chain := NewChain(quietLogger(),
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b"},
	)
	resp, err := chain.Search(context.Background(), Query{Text: "x"})
	if err != nil || resp.Total != 0 || resp.Items == nil {
		t.Fatalf("expected empty response, got %+v %v", resp, err)
	}
	if _, err := NewChain(nil).Search(context.Background(), Query{Text: "x"}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestServiceCachesByNormalizedKey(t *testing.T) {
	p := &fakeProvider{name: "google", items: []Result{{Title: "Ficção"}}}
	svc := NewService(NewChain(quietLogger(), p), cache.NewMemoryCache(time.Hour), quietLogger())
	ctx := context.Background()

	for _, text := range []string{"Ficção", "  FICCAO "} {
		resp, err := svc.Search(ctx, Query{Text: text})
		if err != nil || resp.Total != 1 {
			t.Fatalf("search %q: %+v %v", text, resp, err)
		}
	}
	if p.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls.Load())
	}
	if _, err := svc.Search(ctx, Query{Text: "ficcao", MaxResults: 10}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("different maxResults must miss the cache")
	}
}

func TestServiceDoesNotCacheErrors(t *testing.T) {
	p := &fakeProvider{name: "google", err: errors.New("down")}
	svc := NewService(NewChain(quietLogger(), p), cache.NewMemoryCache(time.Hour), quietLogger())
	for i := 0; i < 2; i++ {
		if _, err := svc.Search(context.Background(), Query{Text: "x"}); err == nil {
			t.Fatalf("expected error")
		}
	}
	if p.calls.Load() != 2 {
		t.Fatalf("errors must not be cached")
	}
}

func TestCacheKeyAndQueryDefaults(t *testing.T) {
	if got := CacheKey(Query{Text: " Dom Casmurro "}); got != "catalog:all:5:dom casmurro" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := CacheKey(Query{Text: "x", Mode: ModeAuthor, MaxResults: 99}); got != "catalog:author:40:x" {
		t.Fatalf("unexpected clamped key %q", got)
	}
	if _, ok := ParseMode("isbn"); ok {
		t.Fatalf("unknown mode accepted")
	}
	if m, ok := ParseMode(""); !ok || m != ModeAll {
		t.Fatalf("empty mode should default to all")
	}
}

// Package catalog looks books up in public catalogs (Google Books, Open
// Library) and normalizes their answers to one shape.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Mode restricts which field the query is matched against.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeTitle  Mode = "title"
	ModeAuthor Mode = "author"
)

const (
	DefaultMaxResults = 5
	MaxMaxResults     = 40
)

// ParseMode accepts the three modes; empty means ModeAll.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAll:
		return ModeAll, true
	case ModeTitle:
		return ModeTitle, true
	case ModeAuthor:
		return ModeAuthor, true
	}
	return "", false
}

// Query is one catalog lookup.
type Query struct {
	Text       string
	Mode       Mode
	MaxResults int
}

// normalized trims the text and clamps MaxResults into [1, MaxMaxResults].
func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Mode == "" {
		q.Mode = ModeAll
	}
	switch {
	case q.MaxResults <= 0:
		q.MaxResults = DefaultMaxResults
	case q.MaxResults > MaxMaxResults:
		q.MaxResults = MaxMaxResults
	}
	return q
}

// Result is a catalog entry in provider-independent form. ExternalID is
// prefixed with the provider name ("google:", "openlibrary:") and is what a
// library book records in its externalId field.
type Result struct {
	ExternalID    string   `json:"externalId"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PageCount     int      `json:"pageCount,omitempty"`
	Description   string   `json:"description,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	CoverURL      string   `json:"thumbnail,omitempty"`
	Language      string   `json:"language,omitempty"`
	Source        string   `json:"source"`
}

// Provider is a searchable catalog.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Status)
}

func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "paginas-amarelas/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Provider: provider, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

// httpsURL upgrades plain-http cover links so pages served over TLS can
// show them.
func httpsURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

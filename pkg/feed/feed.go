// Package feed pages through recently updated books with a keyset cursor.
//
// Entries are ordered by (updatedAt desc, id desc). The cursor handed to
// clients is the id of the last entry on a page; the paginator resolves it
// back to its compound key and asks the source for rows strictly after it,
// so timestamp collisions never skip or repeat entries.
package feed

import (
	"context"
	"strconv"
	"strings"
	"time"

	"paginasamarelas/internal/errors"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/text"
)

// DefaultPageSize is the number of entries per page.
const DefaultPageSize = 10

// Key is the compound sort key of a feed entry.
type Key struct {
	UpdatedAt time.Time
	ID        int64
}

// Less reports (k.UpdatedAt, k.ID) < (other.UpdatedAt, other.ID). In feed
// order (descending) the entries after a cursor are exactly those whose key
// is Less than the cursor's.
func (k Key) Less(other Key) bool {
	if !k.UpdatedAt.Equal(other.UpdatedAt) {
		return k.UpdatedAt.Before(other.UpdatedAt)
	}
	return k.ID < other.ID
}

// KeyOf returns the sort key of an entry.
func KeyOf(e domain.FeedEntry) Key {
	return Key{UpdatedAt: e.UpdatedAt, ID: e.ID}
}

// Source is the storage side of the feed.
type Source interface {
	// FeedKey resolves an entry id to its sort key. Deleted entries still
	// resolve so a cursor pointing at them keeps its position.
	FeedKey(ctx context.Context, id int64) (Key, bool, error)
	// ListFeed returns up to limit live entries in feed order, strictly
	// after the given key when it is non-nil.
	ListFeed(ctx context.Context, after *Key, limit int) ([]domain.FeedEntry, error)
}

// Page is one slice of the feed.
type Page struct {
	Items      []domain.FeedEntry `json:"items"`
	HasMore    bool               `json:"hasMore"`
	NextCursor *int64             `json:"nextCursor,omitempty"`
}

// Paginator fetches feed pages from a Source.
type Paginator struct {
	source   Source
	pageSize int
	now      func() time.Time
}

// NewPaginator builds a paginator; pageSize <= 0 uses DefaultPageSize.
func NewPaginator(source Source, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{source: source, pageSize: pageSize, now: time.Now}
}

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int {
	return p.pageSize
}

// ParseCursor converts the raw query value into an entry id.
// An empty value means "first page" and returns ok=false.
func ParseCursor(raw string) (int64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, errors.Validationf("invalid cursor %q", raw)
	}
	return id, true, nil
}

// Page returns the page following cursor, or the first page when cursor is
// empty. Malformed or unknown cursors yield a validation error; storage
// failures are wrapped as internal errors.
func (p *Paginator) Page(ctx context.Context, cursor string) (Page, error) {
	id, ok, err := ParseCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	var after *Key
	if ok {
		key, found, err := p.source.FeedKey(ctx, id)
		if err != nil {
			return Page{}, errors.Wrap(err, errors.CodeInternal, "resolve feed cursor")
		}
		if !found {
			return Page{}, errors.Validationf("unknown cursor %d", id)
		}
		after = &key
	}
	rows, err := p.source.ListFeed(ctx, after, p.pageSize+1)
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CodeInternal, "list feed")
	}
	return p.assemble(rows), nil
}

func (p *Paginator) assemble(rows []domain.FeedEntry) Page {
	page := Page{HasMore: len(rows) > p.pageSize}
	if page.HasMore {
		rows = rows[:p.pageSize]
	}
	now := p.now()
	items := make([]domain.FeedEntry, len(rows))
	for i, row := range rows {
		row.UpdatedAgo = text.TimeAgo(row.UpdatedAt, now)
		items[i] = row
	}
	page.Items = items
	if page.HasMore && len(items) > 0 {
		last := items[len(items)-1].ID
		page.NextCursor = &last
	}
	return page
}

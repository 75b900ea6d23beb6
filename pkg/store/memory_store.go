package store

import (
	"context"
	"slices"
	"sync"

	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/feed"
)

type bookRecord struct {
	book    domain.Book
	deleted bool
}

// MemoryStore keeps users and books in-process. It follows the same
// semantics as GormStore (soft deletes, case-insensitive usernames) and
// backs tests and database-less development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	usernames  map[string]int64 // lower-cased username -> user ID
	books      map[int64]*bookRecord
	nextUserID int64
	nextBookID int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]domain.User),
		usernames: make(map[string]int64),
		books:     make(map[int64]*bookRecord),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usernameKey(u.Username)
	if _, taken := m.usernames[key]; taken {
		return domain.User{}, ErrUsernameTaken
	}
	m.nextUserID++
	u.ID = m.nextUserID
	m.users[u.ID] = u
	m.usernames[key] = u.ID
	return u, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return nil
	}
	cur.Name = u.Name
	cur.Image = u.Image
	cur.Email = u.Email
	cur.UpdatedAt = u.UpdatedAt
	m.users[u.ID] = cur
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[usernameKey(username)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) CreateBook(_ context.Context, b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookID++
	b.ID = m.nextBookID
	m.books[b.ID] = &bookRecord{book: b}
	return b, nil
}

func (m *MemoryStore) UpdateBook(_ context.Context, b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.books[b.ID]
	if !ok || rec.deleted {
		return nil
	}
	b.OwnerID = rec.book.OwnerID
	b.CreatedAt = rec.book.CreatedAt
	rec.book = b
	return nil
}

func (m *MemoryStore) GetBook(_ context.Context, id int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.books[id]
	if !ok || rec.deleted {
		return domain.Book{}, false, nil
	}
	return rec.book, true, nil
}

// DeleteBook marks the book deleted; the record stays as a tombstone.
func (m *MemoryStore) DeleteBook(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.books[id]; ok {
		rec.deleted = true
	}
	return nil
}

func (m *MemoryStore) ListBooksByOwner(_ context.Context, ownerID int64, filter domain.BookFilter) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0)
	for _, rec := range m.books {
		if rec.deleted || rec.book.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && rec.book.Status != filter.Status {
			continue
		}
		res = append(res, rec.book)
	}
	slices.SortFunc(res, func(a, b domain.Book) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareDesc(a.ID, b.ID)
	})
	return res, nil
}

func (m *MemoryStore) HasExternalID(_ context.Context, ownerID int64, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.books {
		if !rec.deleted && rec.book.OwnerID == ownerID && rec.book.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CountBooks(_ context.Context, ownerID int64, status domain.BookStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.books {
		if rec.deleted || rec.book.OwnerID != ownerID {
			continue
		}
		if status == "" || rec.book.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) FeedKey(_ context.Context, id int64) (feed.Key, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.books[id]
	if !ok {
		return feed.Key{}, false, nil
	}
	return feed.Key{UpdatedAt: rec.book.UpdatedAt, ID: rec.book.ID}, true, nil
}

func (m *MemoryStore) ListFeed(_ context.Context, after *feed.Key, limit int) ([]domain.FeedEntry, error) {
	if limit <= 0 {
		return []domain.FeedEntry{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	live := make([]domain.Book, 0, len(m.books))
	for _, rec := range m.books {
		if rec.deleted {
			continue
		}
		if after != nil && !feedKeyOf(rec.book).Less(*after) {
			continue
		}
		live = append(live, rec.book)
	}
	slices.SortFunc(live, func(a, b domain.Book) int {
		ka, kb := feedKeyOf(a), feedKeyOf(b)
		switch {
		case kb.Less(ka):
			return -1
		case ka.Less(kb):
			return 1
		}
		return 0
	})
	if len(live) > limit {
		live = live[:limit]
	}
	items := make([]domain.FeedEntry, 0, len(live))
	for _, b := range live {
		items = append(items, feedEntryOf(b, m.users[b.OwnerID]))
	}
	return items, nil
}

func (m *MemoryStore) Purge(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	books, users := int64(len(m.books)), int64(len(m.users))
	m.books = make(map[int64]*bookRecord)
	m.users = make(map[int64]domain.User)
	m.usernames = make(map[string]int64)
	return books, users, nil
}

func feedKeyOf(b domain.Book) feed.Key {
	return feed.Key{UpdatedAt: b.UpdatedAt, ID: b.ID}
}

func feedEntryOf(b domain.Book, owner domain.User) domain.FeedEntry {
	return domain.FeedEntry{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Pages:       b.Pages,
		CurrentPage: b.CurrentPage,
		Summary:     b.Summary,
		CoverURL:    b.CoverURL,
		Status:      b.Status,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		User:        owner.Public(),
	}
}

func compareDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// Package store persists users, books and sessions.
package store

import (
	"context"
	"errors"

	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/feed"
)

// ErrUsernameTaken is returned by CreateUser when the username (compared
// case-insensitively) already belongs to someone.
var ErrUsernameTaken = errors.New("username already taken")

// Store defines persistence operations for users and books.
// Lookups return (value, found, error); a missing row is not an error.
type Store interface {
	feed.Source

	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id int64) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)

	// books
	CreateBook(ctx context.Context, b domain.Book) (domain.Book, error)
	UpdateBook(ctx context.Context, b domain.Book) error
	GetBook(ctx context.Context, id int64) (domain.Book, bool, error)
	DeleteBook(ctx context.Context, id int64) error
	ListBooksByOwner(ctx context.Context, ownerID int64, filter domain.BookFilter) ([]domain.Book, error)
	HasExternalID(ctx context.Context, ownerID int64, externalID string) (bool, error)
	CountBooks(ctx context.Context, ownerID int64, status domain.BookStatus) (int, error)

	// Purge hard-deletes every book and then every user.
	Purge(ctx context.Context) (books int64, users int64, err error)
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(ctx context.Context, userID int64) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (int64, bool, error)
	DeleteSession(ctx context.Context, token string) error
}

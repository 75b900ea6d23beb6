package app

import (
	"context"
	"strings"

	"paginasamarelas/internal/errors"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/search"
)

// BookInput is the create/update form for a library book.
type BookInput struct {
	Title       string `json:"title" validate:"notblank,max=300"`
	Author      string `json:"author" validate:"notblank,max=200"`
	Genre       string `json:"genre" validate:"max=100"`
	Pages       int    `json:"pages" validate:"gte=0"`
	CurrentPage int    `json:"currentPage" validate:"gte=0"`
	Status      string `json:"status" validate:"omitempty,bookstatus"`
	Summary     string `json:"summary" validate:"max=10000"`
	CoverURL    string `json:"coverUrl" validate:"max=2048"`
	CoverSource string `json:"coverSource" validate:"omitempty,oneof=api upload manual"`
	ExternalID  string `json:"externalId" validate:"max=200"`
}

func (a *App) checkBook(in *BookInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if err := a.validate.Validate(*in); err != nil {
		return err
	}
	if in.Pages > 0 && in.CurrentPage > in.Pages {
		return errors.ValidationWithDetails("Dados inválidos", map[string]string{
			"currentPage": "não pode ser maior que o total de páginas",
		})
	}
	return nil
}

// apply copies the form onto b; status defaults to to-read.
func (in BookInput) apply(b *domain.Book) {
	status, ok := domain.ParseBookStatus(in.Status)
	if !ok {
		status = domain.StatusToRead
	}
	b.Title = in.Title
	b.Author = in.Author
	b.Genre = in.Genre
	b.Pages = in.Pages
	b.CurrentPage = in.CurrentPage
	b.Status = status
	b.Summary = in.Summary
	b.CoverURL = in.CoverURL
	b.CoverSource = domain.CoverSource(in.CoverSource)
	b.ExternalID = in.ExternalID
}

// ListBooks returns the user's books, newest first, optionally narrowed by
// status and ranked against query.
func (a *App) ListBooks(ctx context.Context, userID int64, status, query string) ([]domain.Book, error) {
	filter := domain.BookFilter{}
	if strings.TrimSpace(status) != "" {
		parsed, ok := domain.ParseBookStatus(status)
		if !ok {
			return nil, errors.ValidationWithDetails("Dados inválidos", map[string]string{"status": "deve ser to-read, reading ou read"})
		}
		filter.Status = parsed
	}
	books, err := a.store.ListBooksByOwner(ctx, userID, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list books")
	}
	return search.Books(books, query), nil
}

// CreateBook adds a book to the user's library. A catalog entry can only be
// added once per user.
func (a *App) CreateBook(ctx context.Context, userID int64, in BookInput) (domain.Book, error) {
	if err := a.checkBook(&in); err != nil {
		return domain.Book{}, err
	}
	if in.ExternalID != "" {
		exists, err := a.store.HasExternalID(ctx, userID, in.ExternalID)
		if err != nil {
			return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "check external id")
		}
		if exists {
			return domain.Book{}, errors.Conflict("Este livro já está na sua biblioteca")
		}
	}
	now := a.timestamp()
	book := domain.Book{OwnerID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(&book)
	created, err := a.store.CreateBook(ctx, book)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "create book")
	}
	return created, nil
}

// GetBook returns one of the user's own books. Other users' books are
// reported as missing.
func (a *App) GetBook(ctx context.Context, userID, bookID int64) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, bookID)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "get book")
	}
	if !ok || book.OwnerID != userID {
		return domain.Book{}, errors.NotFound("Livro não encontrado")
	}
	return book, nil
}

// ownedBook loads a book for mutation: missing is 404, someone else's is 403.
func (a *App) ownedBook(ctx context.Context, userID, bookID int64, forbidden string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, bookID)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "get book")
	}
	if !ok {
		return domain.Book{}, errors.NotFound("Livro não encontrado")
	}
	if book.OwnerID != userID {
		return domain.Book{}, errors.Forbidden(forbidden)
	}
	return book, nil
}

// UpdateBook replaces the editable fields of the user's book.
func (a *App) UpdateBook(ctx context.Context, userID, bookID int64, in BookInput) (domain.Book, error) {
	if err := a.checkBook(&in); err != nil {
		return domain.Book{}, err
	}
	book, err := a.ownedBook(ctx, userID, bookID, "Você não tem permissão para editar este livro")
	if err != nil {
		return domain.Book{}, err
	}
	if in.ExternalID != "" && in.ExternalID != book.ExternalID {
		exists, err := a.store.HasExternalID(ctx, userID, in.ExternalID)
		if err != nil {
			return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "check external id")
		}
		if exists {
			return domain.Book{}, errors.Conflict("Este livro já está na sua biblioteca")
		}
	}
	in.apply(&book)
	book.UpdatedAt = a.timestamp()
	if book.UpdatedAt.Before(book.CreatedAt) {
		book.UpdatedAt = book.CreatedAt
	}
	if err := a.store.UpdateBook(ctx, book); err != nil {
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "update book")
	}
	return book, nil
}

// DeleteBook removes the user's book. The row is soft-deleted so feed
// cursors pointing at it keep resolving.
func (a *App) DeleteBook(ctx context.Context, userID, bookID int64) error {
	if _, err := a.ownedBook(ctx, userID, bookID, "Você não tem permissão para deletar este livro"); err != nil {
		return err
	}
	if err := a.store.DeleteBook(ctx, bookID); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete book")
	}
	return nil
}

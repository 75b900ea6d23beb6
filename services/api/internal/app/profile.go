package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"paginasamarelas/internal/errors"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/search"
)

// Profile is the signed-in user's own view of their account.
type Profile struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Username string            `json:"username"`
	Email    string            `json:"email,omitempty"`
	Image    string            `json:"image,omitempty"`
	Stats    domain.ShelfStats `json:"stats"`
}

// PublicProfile is what anyone can see about a reader.
type PublicProfile struct {
	User  domain.PublicUser   `json:"user"`
	Stats domain.ShelfStats   `json:"stats"`
	Books []domain.PublicBook `json:"books"`
}

// ProfileUpdate carries the optional PATCH fields; nil leaves a field alone.
type ProfileUpdate struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// Profile returns the user's account with shelf counts.
func (a *App) Profile(ctx context.Context, userID int64) (Profile, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, errors.Wrap(err, errors.CodeInternal, "load user")
	}
	if !ok {
		return Profile{}, errors.NotFound("Usuário não encontrado")
	}
	stats, err := a.shelfStats(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
		Image:    user.Image,
		Stats:    stats,
	}, nil
}

// shelfStats counts each status concurrently.
func (a *App) shelfStats(ctx context.Context, userID int64) (domain.ShelfStats, error) {
	counts := make([]int, len(domain.Statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, status := range domain.Statuses {
		g.Go(func() error {
			n, err := a.store.CountBooks(gctx, userID, status)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ShelfStats{}, errors.Wrap(err, errors.CodeInternal, "count books")
	}
	return domain.ShelfStats{
		ToRead:  counts[0],
		Reading: counts[1],
		Read:    counts[2],
		Total:   counts[0] + counts[1] + counts[2],
	}, nil
}

// UpdateProfile changes the user's display name and avatar.
func (a *App) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (Profile, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, errors.Wrap(err, errors.CodeInternal, "load user")
	}
	if !ok {
		return Profile{}, errors.NotFound("Usuário não encontrado")
	}
	details := map[string]string{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		switch {
		case name == "":
			details["name"] = "é obrigatório"
		case len([]rune(name)) > 100:
			details["name"] = "deve ter no máximo 100 caracteres"
		default:
			user.Name = name
		}
	}
	if in.Image != nil {
		image := strings.TrimSpace(*in.Image)
		if image == "" {
			details["image"] = "deve ser uma URL válida"
		} else {
			user.Image = image
		}
	}
	if len(details) > 0 {
		return Profile{}, errors.ValidationWithDetails("Dados inválidos", details)
	}
	user.UpdatedAt = a.timestamp()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return Profile{}, errors.Wrap(err, errors.CodeInternal, "update user")
	}
	return a.Profile(ctx, userID)
}

// PublicProfile returns a reader's public page. The username is matched
// case-insensitively; query ranks the listed books but never the stats.
func (a *App) PublicProfile(ctx context.Context, username, query string) (PublicProfile, error) {
	user, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return PublicProfile{}, errors.Wrap(err, errors.CodeInternal, "lookup user")
	}
	if !ok {
		return PublicProfile{}, errors.NotFound("Usuário não encontrado")
	}
	books, err := a.store.ListBooksByOwner(ctx, user.ID, domain.BookFilter{})
	if err != nil {
		return PublicProfile{}, errors.Wrap(err, errors.CodeInternal, "list books")
	}
	public := make([]domain.PublicBook, 0, len(books))
	stats := domain.ShelfStats{Total: len(books)}
	for _, b := range books {
		switch b.Status {
		case domain.StatusToRead:
			stats.ToRead++
		case domain.StatusReading:
			stats.Reading++
		case domain.StatusRead:
			stats.Read++
		}
		public = append(public, b.Public())
	}
	return PublicProfile{
		User:  user.Public(),
		Stats: stats,
		Books: search.Books(public, query),
	}, nil
}

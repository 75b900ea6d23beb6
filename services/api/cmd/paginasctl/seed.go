package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"paginasamarelas/pkg/auth"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/store"
	"paginasamarelas/pkg/text"
)

// seedSkipThreshold stops seeding readers who already have a full shelf.
const seedSkipThreshold = 15

type sampleBook struct {
	Title  string
	Author string
	Genre  string
	Pages  int
}

var sampleBooks = map[domain.BookStatus][]sampleBook{
	domain.StatusToRead: {
		{"O Código Da Vinci", "Dan Brown", "Mistério / Thriller", 489},
		{"Orgulho e Preconceito", "Jane Austen", "Romance Clássico", 279},
		{"A Culpa é das Estrelas", "John Green", "Romance / Drama", 349},
		{"O Senhor dos Anéis: A Sociedade do Anel", "J.R.R. Tolkien", "Fantasia / Aventura", 423},
		{"A Revolução América por Taylor Swift", "Various Authors", "Ficção / Drama", 356},
	},
	domain.StatusReading: {
		{"1984", "George Orwell", "Ficção Científica / Distopia", 328},
		{"O Alquimista", "Paulo Coelho", "Ficção Filosófica", 224},
		{"Harry Potter e a Câmara Secreta", "J.K. Rowling", "Fantasia", 341},
		{"O Hobbit", "J.R.R. Tolkien", "Fantasia / Aventura", 310},
		{"Memórias Póstumas de Brás Cubas", "Machado de Assis", "Romance Clássico", 368},
	},
	domain.StatusRead: {
		{"O Pequeno Príncipe", "Antoine de Saint-Exupéry", "Ficção / Infantil", 96},
		{"Dom Casmurro", "Machado de Assis", "Romance Clássico", 256},
		{"Harry Potter e a Pedra Filosofal", "J.K. Rowling", "Fantasia", 309},
		{"Grande Sertão: Veredas", "Guimarães Rosa", "Romance Clássico", 494},
		{"O Cortiço", "Aluísio Azevedo", "Romance Realista", 203},
	},
}

type seedOptions struct {
	Username string
	Password string
}

type seedReport struct {
	User        domain.User
	UserCreated bool
	Created     []domain.Book
	Skipped     bool
	Total       int
}

// seed ensures the demo reader exists and owns every sample book. Books the
// reader already has (same title and author, ignoring case and accents) are
// left alone. randIntN picks reading progress.
func seed(ctx context.Context, st store.Store, opts seedOptions, randIntN func(int) int) (seedReport, error) {
	var report seedReport
	user, ok, err := st.GetUserByUsername(ctx, opts.Username)
	if err != nil {
		return report, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		hash, err := auth.HashPassword(opts.Password)
		if err != nil {
			return report, fmt.Errorf("hash password: %w", err)
		}
		now := time.Now().UTC().Truncate(time.Microsecond)
		user, err = st.CreateUser(ctx, domain.User{
			Username:     opts.Username,
			Name:         "Leitor de Exemplo",
			Email:        opts.Username + "@example.com",
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return report, fmt.Errorf("create user: %w", err)
		}
		report.UserCreated = true
		slog.Info("seed user created", "username", user.Username, "user_id", user.ID)
	}
	report.User = user

	existing, err := st.ListBooksByOwner(ctx, user.ID, domain.BookFilter{})
	if err != nil {
		return report, fmt.Errorf("list books: %w", err)
	}
	if len(existing) >= seedSkipThreshold {
		report.Skipped = true
		report.Total = len(existing)
		return report, nil
	}
	have := make(map[string]bool, len(existing))
	for _, b := range existing {
		have[bookKey(b.Title, b.Author)] = true
	}

	for _, status := range domain.Statuses {
		for _, sample := range sampleBooks[status] {
			if have[bookKey(sample.Title, sample.Author)] {
				continue
			}
			now := time.Now().UTC().Truncate(time.Microsecond)
			book := domain.Book{
				OwnerID:     user.ID,
				Title:       sample.Title,
				Author:      sample.Author,
				Genre:       sample.Genre,
				Pages:       sample.Pages,
				CurrentPage: samplePage(status, sample.Pages, randIntN),
				Status:      status,
				CoverSource: domain.CoverManual,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			created, err := st.CreateBook(ctx, book)
			if err != nil {
				return report, fmt.Errorf("create book %q: %w", sample.Title, err)
			}
			report.Created = append(report.Created, created)
		}
	}
	report.Total = len(existing) + len(report.Created)
	return report, nil
}

// samplePage puts books being read somewhere in their first 80%.
func samplePage(status domain.BookStatus, pages int, randIntN func(int) int) int {
	switch status {
	case domain.StatusReading:
		upper := max(1, pages*8/10)
		return 1 + randIntN(upper)
	case domain.StatusRead:
		return pages
	default:
		return 0
	}
}

func bookKey(title, author string) string {
	return text.Normalize(title) + "\x00" + text.Normalize(author)
}

func printSeedReport(out io.Writer, r seedReport) {
	if r.UserCreated {
		fmt.Fprintf(out, "Usuário criado: %s\n", r.User.Username)
	} else {
		fmt.Fprintf(out, "Usando usuário: %s\n", r.User.Username)
	}
	if r.Skipped {
		fmt.Fprintf(out, "Já existem %d livros para %q. Pulando criação de livros de exemplo.\n", r.Total, r.User.Username)
		return
	}
	for _, b := range r.Created {
		fmt.Fprintf(out, "  %s (%s, %d%%)\n", b.Title, b.Status, b.Progress())
	}
	fmt.Fprintf(out, "%d livros de exemplo criados. Total para %q: %d\n", len(r.Created), r.User.Username, r.Total)
}

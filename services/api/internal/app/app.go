package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"paginasamarelas/internal/errors"
	"paginasamarelas/internal/validation"
	"paginasamarelas/pkg/auth"
	"paginasamarelas/pkg/cache"
	"paginasamarelas/pkg/catalog"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/pkg/feed"
	"paginasamarelas/pkg/storage"
	"paginasamarelas/pkg/store"
)

// Config holds runtime configuration for the core application. Store,
// Sessions, Objects and Catalog take precedence over the settings used to
// build them.
type Config struct {
	DatabaseURL string
	Redis       *redis.Client

	SessionMode   string
	SessionTTL    time.Duration
	SessionSecret string

	StorageMode     string
	UploadDir       string
	UploadURLPrefix string
	Minio           storage.MinioOptions
	MaxUploadBytes  int64

	FeedPageSize int

	GoogleBooksAPIKey        string
	CatalogProviders         []string
	CatalogCacheTTL          time.Duration
	CatalogRequestsPerMinute int

	Store    store.Store
	Sessions store.SessionStore
	Objects  storage.ObjectStore
	Catalog  catalog.Searcher
	Logger   *slog.Logger
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	objects        storage.ObjectStore
	catalog        catalog.Searcher
	feed           *feed.Paginator
	validate       *validation.Validator
	maxUploadBytes int64
	now            func() time.Time
}

// New constructs the application, opening whatever backends cfg leaves unset.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.CatalogCacheTTL == 0 {
		cfg.CatalogCacheTTL = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataStore := cfg.Store
	if dataStore == nil {
		var err error
		dataStore, err = openStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var err error
		sessionStore, err = openSessions(cfg)
		if err != nil {
			return nil, err
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = openObjects(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	searcher := cfg.Catalog
	if searcher == nil {
		searcher = newCatalog(cfg, logger)
	}

	return &App{
		store:          dataStore,
		sessions:       sessionStore,
		objects:        objects,
		catalog:        searcher,
		feed:           feed.NewPaginator(dataStore, cfg.FeedPageSize),
		validate:       validation.New(),
		maxUploadBytes: cfg.MaxUploadBytes,
		now:            time.Now,
	}, nil
}

func openStore(databaseURL string) (store.Store, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("database URL required (use memory:// for an in-process store)")
	case strings.HasPrefix(databaseURL, "memory:"):
		return store.NewMemoryStore(), nil
	}
	gormStore, err := store.NewGormStore(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	return gormStore, nil
}

func openSessions(cfg Config) (store.SessionStore, error) {
	switch cfg.SessionMode {
	case "", "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis session store requires a redis client")
		}
		return store.NewRedisSessionStore(cfg.Redis, cfg.SessionTTL), nil
	case "jwt":
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if cfg.Redis != nil {
			revoker = store.NewRedisTokenRevoker(cfg.Redis)
		}
		sessions, err := store.NewJWTSessionStore(cfg.SessionSecret, cfg.SessionTTL, revoker, store.JWTOptions{})
		if err != nil {
			return nil, fmt.Errorf("init jwt sessions: %w", err)
		}
		return sessions, nil
	default:
		return nil, fmt.Errorf("unknown session mode %q", cfg.SessionMode)
	}
}

func openObjects(ctx context.Context, cfg Config) (storage.ObjectStore, error) {
	switch cfg.StorageMode {
	case "", "local":
		return storage.NewFileStore(cfg.UploadDir, cfg.UploadURLPrefix)
	case "minio":
		objects, err := storage.NewMinioStore(ctx, cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio store: %w", err)
		}
		return objects, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}

func newCatalog(cfg Config, logger *slog.Logger) catalog.Searcher {
	opts := catalog.ClientOptions{RequestsPerMinute: cfg.CatalogRequestsPerMinute}
	names := cfg.CatalogProviders
	if len(names) == 0 {
		names = []string{"openlibrary", "google"}
	}
	providers := make([]catalog.Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "openlibrary":
			providers = append(providers, catalog.NewOpenLibrary(opts))
		case "google":
			providers = append(providers, catalog.NewGoogleBooks(cfg.GoogleBooksAPIKey, opts))
		default:
			logger.Warn("unknown catalog provider ignored", "provider", name)
		}
	}
	var c cache.Cache = cache.NewMemoryCache(cfg.CatalogCacheTTL)
	if cfg.Redis != nil {
		c = cache.NewRedisCache(cfg.Redis, "", cfg.CatalogCacheTTL)
	}
	return catalog.NewService(catalog.NewChain(logger, providers...), c, logger)
}

// Close releases backends that hold connections.
func (a *App) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Store exposes the underlying store for operational tooling.
func (a *App) Store() store.Store {
	return a.store
}

// UploadsHandler serves locally stored covers. ok is false when covers live
// in object storage and are served from there.
func (a *App) UploadsHandler() (prefix string, h http.Handler, ok bool) {
	fs, ok := a.objects.(*storage.FileStore)
	if !ok {
		return "", nil, false
	}
	return fs.URLPrefix(), fs.Handler(), true
}

// timestamp returns the current time at the precision Postgres stores.
func (a *App) timestamp() time.Time {
	return a.now().UTC().Truncate(time.Microsecond)
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name            string `json:"name" validate:"notblank,max=100"`
	Username        string `json:"username" validate:"required,min=3,max=32,username"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// Register creates a user. Usernames are unique regardless of case.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := a.validate.Validate(in); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return domain.User{}, errors.ValidationWithDetails("Dados inválidos", map[string]string{"password": "é longa demais"})
		}
		return domain.User{}, errors.Wrap(err, errors.CodeInternal, "hash password")
	}
	now := a.timestamp()
	user, err := a.store.CreateUser(ctx, domain.User{
		Username:     in.Username,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return domain.User{}, errors.AlreadyExists("Usuário já existe")
		}
		return domain.User{}, errors.Wrap(err, errors.CodeInternal, "create user")
	}
	return user, nil
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

// Login validates credentials and issues a session token.
func (a *App) Login(ctx context.Context, in LoginInput) (domain.User, string, error) {
	if err := a.validate.Validate(in); err != nil {
		return domain.User{}, "", err
	}
	user, ok, err := a.store.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return domain.User{}, "", errors.Wrap(err, errors.CodeInternal, "lookup user")
	}
	if !ok || !auth.CheckPassword(in.Password, user.PasswordHash) {
		return domain.User{}, "", errors.InvalidCredentials("Usuário ou senha inválidos")
	}
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", errors.Wrap(err, errors.CodeInternal, "issue session")
	}
	return user, token, nil
}

// Logout ends the session behind token.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(ctx, token); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete session")
	}
	return nil
}

// Authenticate resolves a session token to its user.
func (a *App) Authenticate(ctx context.Context, token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil {
		return domain.User{}, errors.Wrap(err, errors.CodeInternal, "resolve session")
	}
	if !ok {
		return domain.User{}, errors.Unauthorized("Não autorizado")
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, errors.Wrap(err, errors.CodeInternal, "load user")
	}
	if !ok {
		return domain.User{}, errors.Unauthorized("Não autorizado")
	}
	return user, nil
}

// Feed returns the page of recent books after cursor.
func (a *App) Feed(ctx context.Context, cursor string) (feed.Page, error) {
	return a.feed.Page(ctx, cursor)
}

// SearchCatalog looks a book up in the external catalogs.
func (a *App) SearchCatalog(ctx context.Context, q catalog.Query) (catalog.Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return catalog.Response{}, errors.ValidationWithDetails("Dados inválidos", map[string]string{"q": "é obrigatório"})
	}
	resp, err := a.catalog.Search(ctx, q)
	if err != nil {
		return catalog.Response{}, errors.Wrap(err, errors.CodeUpstream, "Erro ao buscar livros no catálogo")
	}
	if resp.Items == nil {
		resp.Items = []catalog.Result{}
	}
	return resp, nil
}

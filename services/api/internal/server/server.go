package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"paginasamarelas/internal/errors"
	"paginasamarelas/internal/ratelimit"
	"paginasamarelas/internal/util"
	"paginasamarelas/pkg/catalog"
	"paginasamarelas/pkg/domain"
	"paginasamarelas/services/api/internal/app"
)

const maxJSONBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Redis backs the login/register limiters; nil disables rate limiting.
	Redis                      *redis.Client
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	TrustedProxyCIDRs          []string
	AllowedOrigins             []string
	SessionCookieName          string
	SessionCookieSecure        bool
	SessionTTL                 time.Duration
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trustedProxies  *util.TrustedProxies
	allowedOrigins  []string
	cookieName      string
	cookieSecure    bool
	sessionTTL      time.Duration
	loginLimiter    ratelimit.Limiter
	registerLimiter ratelimit.Limiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server: app is required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
		allowedOrigins: cfg.AllowedOrigins,
		cookieName:     cfg.SessionCookieName,
		cookieSecure:   cfg.SessionCookieSecure,
		sessionTTL:     cfg.SessionTTL,
	}
	if s.cookieName == "" {
		s.cookieName = "paginas_session"
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 7 * 24 * time.Hour
	}
	if cfg.Redis != nil {
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		if s.loginLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.Redis, "paginas:ratelimit:login", loginLimit, time.Minute); err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		if s.registerLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.Redis, "paginas:ratelimit:register", registerLimit, time.Minute); err != nil {
			return nil, fmt.Errorf("init register limiter: %w", err)
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("api", s.trustedProxies, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	// library (auth required)
	s.mux.Handle("/api/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookByID))
	s.mux.Handle("/api/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/api/upload", s.authenticated(s.handleUpload))

	// public
	s.mux.HandleFunc("/api/users/", s.handlePublicProfile)
	s.mux.HandleFunc("/api/feed", s.handleFeed)
	s.mux.HandleFunc("/api/catalog/search", s.handleCatalogSearch)

	if prefix, files, ok := s.app.UploadsHandler(); ok {
		s.mux.Handle(prefix+"/", files)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.sessionToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "Não autorizado")
			return
		}
		user, err := s.app.Authenticate(r.Context(), token)
		if err != nil {
			s.audit(r, "api.authorize", "fail", "reason", "invalid_session")
			writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

// sessionToken reads the bearer token, falling back to the session cookie.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, true
	}
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(cookie.Value)
	return token, token != ""
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "Muitas tentativas de cadastro. Tente novamente em instantes") {
		s.audit(r, "api.register", "rate_limited")
		return
	}
	var req app.RegisterInput
	if !decodeJSON(w, r, &req) {
		s.audit(r, "api.register", "fail", "reason", "invalid_json")
		return
	}
	user, err := s.app.Register(r.Context(), req)
	if err != nil {
		s.audit(r, "api.register", "fail", "reason", errorCode(err))
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Usuário criado com sucesso",
		"user":    newUserResponse(user),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "Muitas tentativas de login. Tente novamente em instantes") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req app.LoginInput
	if !decodeJSON(w, r, &req) {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		return
	}
	user, token, err := s.app.Login(r.Context(), req)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", errorCode(err))
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: newUserResponse(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if token, ok := s.sessionToken(r); ok {
		if err := s.app.Logout(r.Context(), token); err != nil {
			s.audit(r, "api.logout", "fail", "reason", errorCode(err))
			writeAppError(w, r, err)
			return
		}
	}
	s.audit(r, "api.logout", "success")
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		books, err := s.app.ListBooks(r.Context(), user.ID, q.Get("status"), q.Get("q"))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	case http.MethodPost:
		var req app.BookInput
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.CreateBook(r.Context(), user.ID, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

// /api/books/{id}
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if raw == "" || strings.Contains(raw, "/") {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(r.Context(), user.ID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		var req app.BookInput
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.UpdateBook(r.Context(), user.ID, id, req)
		if err != nil {
			if errors.Is(err, errors.ErrForbidden) {
				s.audit(r, "api.book.update", "fail", "user_id", user.ID, "book_id", id, "reason", "forbidden")
			}
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), user.ID, id); err != nil {
			if errors.Is(err, errors.ErrForbidden) {
				s.audit(r, "api.book.delete", "fail", "user_id", user.ID, "book_id", id, "reason", "forbidden")
			}
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Livro deletado com sucesso"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.Profile(r.Context(), user.ID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPatch:
		var req app.ProfileUpdate
		if !decodeJSON(w, r, &req) {
			return
		}
		profile, err := s.app.UpdateProfile(r.Context(), user.ID, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w)
	}
}

// /api/users/{username}
func (s *Server) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if username == "" || strings.Contains(username, "/") {
		http.NotFound(w, r)
		return
	}
	profile, err := s.app.PublicProfile(r.Context(), username, r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page, err := s.app.Feed(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	limit := s.app.MaxUploadBytes()
	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusBadRequest, "Arquivo muito grande")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "Nenhum arquivo fornecido")
		default:
			writeError(w, http.StatusBadRequest, "Formulário inválido")
		}
		return
	}
	defer file.Close()

	result, err := s.app.UploadCover(r.Context(), file)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	util.LoggerFromContext(r.Context()).Info("cover uploaded", "user_id", user.ID, "key", result.Filename)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	params := r.URL.Query()
	mode, ok := catalog.ParseMode(params.Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Modo de busca inválido")
		return
	}
	maxResults := 0
	if raw := strings.TrimSpace(params.Get("maxResults")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "maxResults inválido")
			return
		}
		maxResults = n
	}
	resp, err := s.app.SearchCatalog(r.Context(), catalog.Query{
		Text:       params.Get("q"),
		Mode:       mode,
		MaxResults: maxResults,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Name: u.Name, Image: u.Image, CreatedAt: u.CreatedAt}
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppError maps domain errors onto responses. Internal failures are
// logged with their cause and reported without it.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *errors.Error
	if !errors.As(err, &domainErr) || domainErr.Code == errors.CodeInternal {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: string(errors.CodeInternal)})
		return
	}
	status := domainErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{
		Error:   domainErr.Message,
		Code:    string(domainErr.Code),
		Details: domainErr.Details,
	})
}

func errorCode(err error) string {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		return string(domainErr.Code)
	}
	return "unknown"
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: msg, Code: string(errors.CodeRateLimited)})
	return false
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, overridable with PAGINAS_CONFIG.
var ConfigPath = defaultConfigPath()

// MemoryDatabaseURL selects the in-process store instead of Postgres.
const MemoryDatabaseURL = "memory://"

const (
	SessionModeRedis = "redis"
	SessionModeJWT   = "jwt"

	StorageModeLocal = "local"
	StorageModeMinio = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SessionMode         string `yaml:"sessionMode"`
	SessionTTL          string `yaml:"sessionTTL"`
	SessionSecret       string `yaml:"sessionSecret"`
	SessionCookieName   string `yaml:"sessionCookieName"`
	SessionCookieSecure bool   `yaml:"sessionCookieSecure"`

	StorageMode        string `yaml:"storageMode"`
	UploadDir          string `yaml:"uploadDir"`
	UploadURLPrefix    string `yaml:"uploadURLPrefix"`
	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`
	MinioPresignExpiry string `yaml:"minioPresignExpiry"`
	MaxUploadBytes     int64  `yaml:"maxUploadBytes"`

	FeedPageSize   int      `yaml:"feedPageSize"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	GoogleBooksAPIKey        string   `yaml:"googleBooksAPIKey"`
	CatalogProviders         []string `yaml:"catalogProviders"`
	CatalogCacheTTL          string   `yaml:"catalogCacheTTL"`
	CatalogRequestsPerMinute int      `yaml:"catalogRequestsPerMinute"`

	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
}

// Load reads config from path (defaults to ConfigPath).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Override with environment variables
func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "PAGINAS_LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.SessionMode, "PAGINAS_SESSION_MODE")
	setString(&cfg.SessionTTL, "PAGINAS_SESSION_TTL")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.SessionCookieName, "PAGINAS_SESSION_COOKIE_NAME")
	setBool(&cfg.SessionCookieSecure, "PAGINAS_SESSION_COOKIE_SECURE")

	setString(&cfg.StorageMode, "PAGINAS_STORAGE_MODE")
	setString(&cfg.UploadDir, "PAGINAS_UPLOAD_DIR")
	setString(&cfg.UploadURLPrefix, "PAGINAS_UPLOAD_URL_PREFIX")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")
	setString(&cfg.MinioPublicBaseURL, "MINIO_PUBLIC_BASE_URL")
	setString(&cfg.MinioPresignExpiry, "MINIO_PRESIGN_EXPIRY")
	if v := os.Getenv("PAGINAS_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}

	setInt(&cfg.FeedPageSize, "PAGINAS_FEED_PAGE_SIZE")
	if v := os.Getenv("PAGINAS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}

	setString(&cfg.GoogleBooksAPIKey, "GOOGLE_BOOKS_API_KEY")
	if v := os.Getenv("PAGINAS_CATALOG_PROVIDERS"); v != "" {
		cfg.CatalogProviders = splitCSV(v)
	}
	setString(&cfg.CatalogCacheTTL, "PAGINAS_CATALOG_CACHE_TTL")
	setInt(&cfg.CatalogRequestsPerMinute, "PAGINAS_CATALOG_REQUESTS_PER_MINUTE")

	setInt(&cfg.LoginRateLimitPerMinute, "PAGINAS_LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.RegisterRateLimitPerMinute, "PAGINAS_REGISTER_RATE_LIMIT_PER_MINUTE")
	if v := os.Getenv("PAGINAS_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.SessionMode == "" {
		cfg.SessionMode = SessionModeRedis
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "paginas_session"
	}
	if cfg.StorageMode == "" {
		cfg.StorageMode = StorageModeLocal
	}
	if cfg.UploadURLPrefix == "" {
		cfg.UploadURLPrefix = "/uploads"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	if len(cfg.CatalogProviders) == 0 {
		cfg.CatalogProviders = []string{"openlibrary", "google"}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL; use memory:// for development)")
	}
	switch cfg.SessionMode {
	case SessionModeRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for sessionMode redis")
		}
	case SessionModeJWT:
		if len(cfg.SessionSecret) < 32 {
			return errors.New("config: sessionSecret must be at least 32 bytes for sessionMode jwt (set SESSION_SECRET)")
		}
	default:
		return fmt.Errorf("config: unknown sessionMode %q (want redis or jwt)", cfg.SessionMode)
	}
	switch cfg.StorageMode {
	case StorageModeLocal:
		if strings.TrimSpace(cfg.UploadDir) == "" {
			return errors.New("config: uploadDir is required for storageMode local")
		}
		if !strings.HasPrefix(cfg.UploadURLPrefix, "/") {
			return errors.New("config: uploadURLPrefix must start with /")
		}
	case StorageModeMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for storageMode minio")
		}
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minioAccessKey and minioSecretKey are required for storageMode minio")
		}
	default:
		return fmt.Errorf("config: unknown storageMode %q (want local or minio)", cfg.StorageMode)
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.FeedPageSize < 0 {
		return errors.New("config: feedPageSize must be >= 0")
	}
	for _, name := range cfg.CatalogProviders {
		switch name {
		case "openlibrary", "google":
		default:
			return fmt.Errorf("config: unknown catalog provider %q", name)
		}
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 || cfg.CatalogRequestsPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.LoginRateLimitPerMinute > 0 || cfg.RegisterRateLimitPerMinute > 0) && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	for _, field := range []struct{ name, value string }{
		{"sessionTTL", cfg.SessionTTL},
		{"catalogCacheTTL", cfg.CatalogCacheTTL},
		{"minioPresignExpiry", cfg.MinioPresignExpiry},
	} {
		if _, err := ParseDuration(field.name, field.value, 0); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration field, returning fallback when empty.
func ParseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", field)
	}
	return dur, nil
}

func defaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("PAGINAS_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

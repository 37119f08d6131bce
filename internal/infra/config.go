package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	ReplicateAPIToken string
	ReplicateModel    string
	ReplicateBaseURL  string

	PollInterval    time.Duration
	PollMaxAttempts int
	PollBackoff     bool
	PollMaxInterval time.Duration
	PollDeadline    time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	StorageBucket      string
	LocalStoragePath   string
	StorageBaseURL     string

	DatabaseURL string
	SQLitePath  string

	JWTSecret string

	TranslationEnabled bool
	NaverClientID      string
	NaverClientSecret  string
	MyMemoryBaseURL    string

	GeoIPDBPath           string
	ArtifactHostAllowlist []string
	CORSAllowedOrigins    []string
	DefaultLocale         string

	PromptMaxLength  int
	RemainingCredits int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		ReplicateAPIToken:  strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateModel:     getEnv("REPLICATE_MODEL", "google/nano-banana"),
		ReplicateBaseURL:   getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		PollInterval:       time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)),
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 60),
		PollBackoff:        getEnvBool("POLL_BACKOFF", false),
		PollMaxInterval:    time.Millisecond * time.Duration(getEnvInt("POLL_MAX_INTERVAL_MS", 10000)),
		PollDeadline:       time.Second * time.Duration(getEnvInt("POLL_DEADLINE_SECONDS", 0)),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		StorageBucket:      getEnv("STORAGE_BUCKET", "images"),
		LocalStoragePath:   os.Getenv("LOCAL_STORAGE_PATH"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TranslationEnabled: getEnvBool("TRANSLATION_ENABLED", true),
		NaverClientID:      os.Getenv("NAVER_CLIENT_ID"),
		NaverClientSecret:  os.Getenv("NAVER_CLIENT_SECRET"),
		MyMemoryBaseURL:    getEnv("MYMEMORY_BASE_URL", "https://api.mymemory.translated.net"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		PromptMaxLength:    getEnvInt("PROMPT_MAX_LENGTH", 500),
		RemainingCredits:   getEnvInt("REMAINING_CREDITS", 17),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", cfg.Port))
	cfg.ArtifactHostAllowlist = splitHosts(os.Getenv("ARTIFACT_HOST_ALLOWLIST"))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.SupabaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.SupabaseURL); err != nil {
			return nil, fmt.Errorf("SUPABASE_URL is invalid: %w", err)
		}
	}

	return cfg, nil
}

// ProviderConfigured reports whether the generation provider credential is present.
func (c *Config) ProviderConfigured() bool {
	return c != nil && c.ReplicateAPIToken != ""
}

// RemoteStorageConfigured reports whether the object store endpoint and credential are both set.
func (c *Config) RemoteStorageConfigured() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitHosts(raw string) []string {
	seen := map[string]struct{}{}
	var hosts []string
	for _, part := range strings.Split(raw, ",") {
		host := strings.ToLower(strings.TrimSpace(part))
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

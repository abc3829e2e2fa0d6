package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	AI            AIConfig
	Breaker       BreakerConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Images        ImageConfig
	Prompt        PromptConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds bearer token settings shared with the main platform
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ProviderConfig holds the settings for a single text-generation backend
type ProviderConfig struct {
	Name        string        `toml:"name"`
	Kind        string        `toml:"kind"`
	BaseURL     string        `toml:"base_url"`
	APIKey      string        `toml:"api_key"`
	Model       string        `toml:"model"`
	CostPer1K   float64       `toml:"cost_per_1k"`
	Timeout     time.Duration `toml:"timeout"`
	Temperature float64       `toml:"temperature"`
}

// AIConfig holds the provider registry and the dispatch priority lists.
// Providers keeps registry order; it is the order used when appending
// providers missing from the standard priority list.
type AIConfig struct {
	Providers       []ProviderConfig
	Priority        []string
	AdultPriority   []string
	ProvidersFile   string
	DefaultProvider string
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	Store         string // memory or redis
	Threshold     int
	TTL           time.Duration
	KeyPrefix     string
	CleanupPeriod time.Duration
	Redis         RedisConfig
}

// RateLimitConfig holds the per-user AI request limits. Counters live in
// the breaker store.
type RateLimitConfig struct {
	FreeLimit    int
	PremiumLimit int
	Window       time.Duration
	KeyPrefix    string
}

// AuditConfig holds the generation audit trail settings
type AuditConfig struct {
	BufferSize  int
	Workers     int
	Retention   time.Duration
	StopTimeout time.Duration
}

// RedisConfig holds connection settings for the shared breaker store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ImageConfig holds Stable Diffusion and image storage settings
type ImageConfig struct {
	BaseURL    string
	Timeout    time.Duration
	StorageDir string
	PublicURL  string
}

// PromptConfig holds prompt assembly settings
type PromptConfig struct {
	Language string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the environment and the optional providers file without
// validating. Tools that never touch the database validate with
// ValidateGateway instead.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		AI: AIConfig{
			Providers:       loadProviderConfigs(),
			Priority:        getEnvAsList("AI_PROVIDER_PRIORITY", []string{"gemini", "claude", "openai"}),
			AdultPriority:   getEnvAsList("AI_ADULT_PRIORITY", []string{"ollama"}),
			ProvidersFile:   getEnv("PROVIDERS_FILE", ""),
			DefaultProvider: getEnv("AI_DEFAULT_PROVIDER", ""),
		},
		Breaker: BreakerConfig{
			Store:         getEnv("BREAKER_STORE", "memory"),
			Threshold:     getEnvAsInt("BREAKER_THRESHOLD", 3),
			TTL:           getEnvAsDuration("BREAKER_TTL", 5*time.Minute),
			KeyPrefix:     getEnv("BREAKER_KEY_PREFIX", "ai_provider_errors:"),
			CleanupPeriod: getEnvAsDuration("BREAKER_CLEANUP_PERIOD", time.Minute),
			Redis: RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		RateLimit: RateLimitConfig{
			FreeLimit:    getEnvAsInt("AI_RATE_LIMIT_FREE", 20),
			PremiumLimit: getEnvAsInt("AI_RATE_LIMIT_PREMIUM", 100),
			Window:       getEnvAsDuration("AI_RATE_LIMIT_WINDOW", time.Hour),
			KeyPrefix:    getEnv("AI_RATE_LIMIT_KEY_PREFIX", "ai_rate:"),
		},
		Audit: AuditConfig{
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:     getEnvAsInt("AUDIT_WORKERS", 2),
			Retention:   getEnvAsDuration("AUDIT_RETENTION", 30*24*time.Hour),
			StopTimeout: getEnvAsDuration("AUDIT_STOP_TIMEOUT", 5*time.Second),
		},
		Images: ImageConfig{
			BaseURL:    getEnv("SD_BASE_URL", "http://stable-diffusion:7860"),
			Timeout:    getEnvAsSeconds("SD_TIMEOUT", 180*time.Second),
			StorageDir: getEnv("IMAGE_STORAGE_DIR", "storage"),
			PublicURL:  getEnv("IMAGE_PUBLIC_URL", "/storage"),
		},
		Prompt: PromptConfig{
			Language: getEnv("PROMPT_LANGUAGE", "Ukrainian"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.AI.ProvidersFile != "" {
		if err := cfg.AI.ApplyProvidersFile(cfg.AI.ProvidersFile); err != nil {
			return nil, fmt.Errorf("failed to load providers file: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required in production")
	}

	return c.ValidateGateway()
}

// ValidateGateway checks the provider, breaker and logging settings
func (c *Config) ValidateGateway() error {
	if err := c.AI.Validate(); err != nil {
		return err
	}

	switch c.Breaker.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported breaker store %q (want memory or redis)", c.Breaker.Store)
	}
	if c.Breaker.Threshold < 1 {
		return fmt.Errorf("breaker threshold must be at least 1")
	}
	if c.Breaker.TTL <= 0 {
		return fmt.Errorf("breaker ttl must be positive")
	}

	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate limit window must not be negative")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks provider names are unique and kinds are known
func (a *AIConfig) Validate() error {
	seen := make(map[string]bool, len(a.Providers))
	for _, p := range a.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if !IsKnownKind(p.Kind) {
			return fmt.Errorf("provider %q has unknown kind %q", p.Name, p.Kind)
		}
	}
	return nil
}

// Provider returns the configuration for the named provider
func (a *AIConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range a.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "storyverse"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "storyverse"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProviderConfigs builds the built-in provider set in registry order
func loadProviderConfigs() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:        KindGemini,
			Kind:        KindGemini,
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			CostPer1K:   getEnvAsFloat("GEMINI_COST_PER_1K", 0.000075),
			Timeout:     getEnvAsSeconds("GEMINI_TIMEOUT", 60*time.Second),
			Temperature: 0.7,
		},
		{
			Name:      KindClaude,
			Kind:      KindClaude,
			BaseURL:   getEnv("CLAUDE_BASE_URL", "https://api.anthropic.com/v1"),
			APIKey:    getEnv("CLAUDE_API_KEY", ""),
			Model:     getEnv("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
			CostPer1K: getEnvAsFloat("CLAUDE_COST_PER_1K", 0.003),
			Timeout:   getEnvAsSeconds("CLAUDE_TIMEOUT", 60*time.Second),
		},
		{
			Name:      KindOpenAI,
			Kind:      KindOpenAI,
			BaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o"),
			CostPer1K: getEnvAsFloat("OPENAI_COST_PER_1K", 0.0025),
			Timeout:   getEnvAsSeconds("OPENAI_TIMEOUT", 60*time.Second),
		},
		{
			Name:        KindOllama,
			Kind:        KindOllama,
			BaseURL:     getEnv("OLLAMA_BASE_URL", "http://ollama:11434"),
			Model:       getEnv("OLLAMA_MODEL", "mistral"),
			Timeout:     getEnvAsSeconds("OLLAMA_TIMEOUT", 120*time.Second),
			Temperature: 0.8,
		},
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSeconds accepts either a Go duration ("90s") or a bare number of seconds ("90")
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, trimming blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return splitList(valueStr)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

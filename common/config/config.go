package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Generator GeneratorConfig `yaml:"generator"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Database    string        `yaml:"database"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreREST     = "rest"
	StoreMemory   = "memory"
)

// StoreConfig selects where workflow rows live
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	RESTURL    string `yaml:"rest_url"`
	RESTKey    string `yaml:"rest_key"`
}

// RedisConfig holds redis settings. An empty Addr disables redis.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	SaveLockTTL  time.Duration `yaml:"save_lock_ttl"`
	ListCacheTTL time.Duration `yaml:"list_cache_ttl"`
}

// AuthConfig holds the shared-password gate settings
type AuthConfig struct {
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecret string        `yaml:"cookie_secret"`
	MaxAge       time.Duration `yaml:"max_age"`
	Secure       bool          `yaml:"secure"`
}

// Enabled reports whether the gate is configured at all
func (a AuthConfig) Enabled() bool {
	return a.PasswordHash != "" || a.Password != ""
}

// GeneratorConfig holds LLM settings for workflow generation
type GeneratorConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimit       int64         `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// HistoryConfig bounds the per-session editing state
type HistoryConfig struct {
	Depth int `yaml:"depth"`
	// SessionIdleTTL drops saved sessions unused this long; 0 keeps them
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool `yaml:"enable_pprof"`
	PprofPort     int  `yaml:"pprof_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// Defaults returns the configuration used when neither file nor env say otherwise
func Defaults(serviceName string) *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        8080,
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "text",
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			Database:    "workflows",
			User:        "workflows",
			Password:    "workflows",
			MaxConns:    20,
			MinConns:    2,
			MaxIdleTime: 30 * time.Minute,
			MaxLifetime: time.Hour,
		},
		Store: StoreConfig{
			Backend:    StorePostgres,
			SQLitePath: "workflows.db",
		},
		Redis: RedisConfig{
			SaveLockTTL:  30 * time.Second,
			ListCacheTTL: 30 * time.Second,
		},
		Auth: AuthConfig{
			CookieName: "vwf_access",
			MaxAge:     30 * 24 * time.Hour,
		},
		Generator: GeneratorConfig{
			BaseURL:         "https://api.anthropic.com",
			Model:           "claude-3-5-sonnet-20241022",
			MaxTokens:       4096,
			Timeout:         90 * time.Second,
			RateLimit:       10,
			RateLimitWindow: time.Minute,
		},
		History: HistoryConfig{
			Depth:          50,
			SessionIdleTTL: 30 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   false,
			PprofPort:     6060,
			EnableMetrics: true,
		},
	}
}

// Load loads configuration: defaults, then the optional CONFIG_FILE overlay,
// then environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := Defaults(serviceName)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Service.Port = getEnvInt("PORT", c.Service.Port)
	c.Service.Environment = getEnv("ENVIRONMENT", c.Service.Environment)
	c.Service.LogLevel = getEnv("LOG_LEVEL", c.Service.LogLevel)
	c.Service.LogFormat = getEnv("LOG_FORMAT", c.Service.LogFormat)

	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("POSTGRES_PORT", c.Database.Port)
	c.Database.Database = getEnv("POSTGRES_DB", c.Database.Database)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.MaxConns = getEnvInt("POSTGRES_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("POSTGRES_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxIdleTime = getEnvDuration("POSTGRES_MAX_IDLE_TIME", c.Database.MaxIdleTime)
	c.Database.MaxLifetime = getEnvDuration("POSTGRES_MAX_LIFETIME", c.Database.MaxLifetime)

	c.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", c.Store.Backend))
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.RESTURL = getEnv("SUPABASE_URL", c.Store.RESTURL)
	c.Store.RESTKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Store.RESTKey)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.SaveLockTTL = getEnvDuration("SAVE_LOCK_TTL", c.Redis.SaveLockTTL)
	c.Redis.ListCacheTTL = getEnvDuration("LIST_CACHE_TTL", c.Redis.ListCacheTTL)

	c.Auth.Password = getEnv("PASSWORD", c.Auth.Password)
	c.Auth.PasswordHash = getEnv("ACCESS_PASSWORD_HASH", c.Auth.PasswordHash)
	c.Auth.CookieName = getEnv("ACCESS_COOKIE_NAME", c.Auth.CookieName)
	c.Auth.CookieSecret = getEnv("ACCESS_COOKIE_SECRET", c.Auth.CookieSecret)
	c.Auth.MaxAge = getEnvDuration("ACCESS_MAX_AGE", c.Auth.MaxAge)
	c.Auth.Secure = getEnvBool("ACCESS_COOKIE_SECURE", c.Auth.Secure || c.Service.Environment == "production")

	c.Generator.APIKey = getEnv("ANTHROPIC_API_KEY", c.Generator.APIKey)
	c.Generator.BaseURL = getEnv("ANTHROPIC_BASE_URL", c.Generator.BaseURL)
	c.Generator.Model = getEnv("ANTHROPIC_MODEL", c.Generator.Model)
	c.Generator.MaxTokens = getEnvInt("ANTHROPIC_MAX_TOKENS", c.Generator.MaxTokens)
	c.Generator.Timeout = getEnvDuration("GENERATE_TIMEOUT", c.Generator.Timeout)
	c.Generator.RateLimit = int64(getEnvInt("GENERATE_RATE_LIMIT", int(c.Generator.RateLimit)))
	c.Generator.RateLimitWindow = getEnvDuration("GENERATE_RATE_WINDOW", c.Generator.RateLimitWindow)

	c.History.Depth = getEnvInt("HISTORY_DEPTH", c.History.Depth)
	c.History.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", c.History.SessionIdleTTL)

	c.Telemetry.EnablePprof = getEnvBool("ENABLE_PPROF", c.Telemetry.EnablePprof)
	c.Telemetry.PprofPort = getEnvInt("PPROF_PORT", c.Telemetry.PprofPort)
	c.Telemetry.EnableMetrics = getEnvBool("ENABLE_METRICS", c.Telemetry.EnableMetrics)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Store.Backend {
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StoreREST:
		if c.Store.RESTURL == "" || c.Store.RESTKey == "" {
			return fmt.Errorf("rest store needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if c.History.Depth < 1 {
		return fmt.Errorf("history depth must be positive: %d", c.History.Depth)
	}
	if c.History.SessionIdleTTL < 0 {
		return fmt.Errorf("session idle ttl must not be negative: %s", c.History.SessionIdleTTL)
	}

	if c.Auth.Enabled() && c.Auth.CookieSecret == "" {
		return fmt.Errorf("ACCESS_COOKIE_SECRET is required when the password gate is enabled")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

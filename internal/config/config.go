// Package config loads the importer's settings from environment variables.
// Every setting has a default except the backend location, and the whole
// configuration is validated once on startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Backend modes.
const (
	BackendDatabase = "database" // collaborators are written to PostgreSQL directly
	BackendHTTP     = "http"     // collaborators are created through the REST API
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout stays 0 so progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-streaming requests.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig selects where reference data comes from and where
// collaborators are created.
type BackendConfig struct {
	// Mode is "database" or "http" (default: database)
	Mode string `env:"BACKEND_MODE" default:"database"`

	// URL is the REST API base URL, required in http mode
	URL string `env:"BACKEND_URL"`

	// Token is sent as a bearer token to the REST API
	Token string `env:"BACKEND_TOKEN"`

	// Timeout bounds each REST API request (default: 30s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL settings, used in database mode and for
// the import audit log.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds limits for import sessions.
type ImportConfig struct {
	// MaxFileSize accepts plain bytes or a KB/MB/GB suffix (default: 10MB)
	MaxFileSize ByteSize `env:"IMPORT_MAX_FILE_SIZE" default:"10MB"`

	// MaxConcurrent is the number of imports running at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long an upload waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds parsing, reference lookup and validation (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`

	// SessionTTL is how long a finished session and its reports are kept (default: 1h)
	SessionTTL time.Duration `env:"IMPORT_SESSION_TTL" default:"1h"`

	// ReapInterval is how often expired sessions are removed (default: 5m)
	ReapInterval time.Duration `env:"IMPORT_REAP_INTERVAL" default:"5m"`

	// DryRun validates files without creating collaborators
	DryRun bool `env:"IMPORT_DRY_RUN" default:"false"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every route (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit applies to upload requests only (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs or IPs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects API requests without a valid X-API-Key
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesDatabase reports whether collaborators are written to PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.Backend.Mode == BackendDatabase
}

// Package config loads the application configuration from environment
// variables, applying defaults and validating every setting on startup.
package config

import (
	"strconv"
	"time"
	_ "time/tzdata" // IMPORT_TIMEZONE must resolve on minimal images
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Ticketing TicketingConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Mail      MailConfig
	Archive   ArchiveConfig
	Secrets   SecretsConfig
	Sync      SyncConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout covers a whole commit response (default: 11m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"11m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// CORSOrigins lists the allowed browser origins; empty disables CORS
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// MigrateOnStart applies pending migrations when the server starts (default: false)
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" default:"false"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of commits running at once (default: 3)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long a commit waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the number of rows provisioned per batch (default: 100)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"100"`

	// Timeout bounds the write phase of a commit (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// RequireSlot turns unresolved session references into row errors (default: false)
	RequireSlot bool `env:"IMPORT_REQUIRE_SLOT" default:"false"`

	// ProfilePath is an optional YAML file of extra column profiles and tariffs
	ProfilePath string `env:"IMPORT_PROFILE_PATH"`

	// Timezone is the zone naive session times are read in (default: Europe/Paris)
	Timezone string `env:"IMPORT_TIMEZONE" default:"Europe/Paris"`

	// InvitationTTL is the validity of invitation tokens (default: 168h)
	InvitationTTL time.Duration `env:"IMPORT_INVITATION_TTL" default:"168h"`
}

// TicketingConfig holds ticketing API settings.
type TicketingConfig struct {
	// BaseURL is the API root (required when sync is used)
	BaseURL string `env:"TICKETING_BASE_URL" default:"https://api.ticketing.example/v1"`

	// Timeout is the per-request timeout (default: 30s)
	Timeout time.Duration `env:"TICKETING_TIMEOUT" default:"30s"`

	// MinInterval spaces attendee calls (default: 10s)
	MinInterval time.Duration `env:"TICKETING_MIN_INTERVAL" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for preview and import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of label:key pairs
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// RedisConfig holds the Redis connection used for commit locks.
type RedisConfig struct {
	// URL enables the Redis lock when set (redis://host:6379/0)
	URL string `env:"REDIS_URL"`

	// LockTTL bounds how long a crashed commit can hold an event (default: 15m)
	LockTTL time.Duration `env:"REDIS_LOCK_TTL" default:"15m"`
}

// QueueConfig holds the email queue settings.
type QueueConfig struct {
	// URL is the AMQP broker; emails are only logged when unset
	URL string `env:"AMQP_URL" envAlt:"RABBITMQ_URL"`

	// Name is the queue name (default: depositor_emails)
	Name string `env:"AMQP_QUEUE" default:"depositor_emails"`

	// Prefetch is the number of unacknowledged deliveries per worker (default: 10)
	Prefetch int `env:"AMQP_PREFETCH" default:"10"`

	// MaxRetries is how many times a failed email is retried (default: 5)
	MaxRetries int `env:"MAIL_MAX_RETRIES" default:"5"`

	// RetryDelay is multiplied by the attempt number before a retry (default: 5s)
	RetryDelay time.Duration `env:"MAIL_RETRY_DELAY" default:"5s"`
}

// MailConfig holds email delivery settings.
type MailConfig struct {
	// From is the sender address (required by the mailer)
	From string `env:"MAIL_FROM"`

	ReplyTo string `env:"MAIL_REPLY_TO"`

	// ActivationURL is the account activation page linked from invitations
	ActivationURL string `env:"MAIL_ACTIVATION_URL" default:"https://bourse.alpe.example/activation"`

	// SESRegion is the AWS region of the SES account (default: eu-west-3)
	SESRegion string `env:"SES_REGION" envAlt:"AWS_REGION" default:"eu-west-3"`

	SESAccessKey string `env:"SES_ACCESS_KEY_ID"`
	SESSecretKey string `env:"SES_SECRET_ACCESS_KEY"`

	// SESConfigurationSet is attached to every message when set
	SESConfigurationSet string `env:"SES_CONFIGURATION_SET"`
}

// ArchiveConfig holds the S3 archive of uploaded source files.
type ArchiveConfig struct {
	// Bucket enables archiving when set
	Bucket string `env:"ARCHIVE_S3_BUCKET"`

	// Prefix is the key prefix (default: imports)
	Prefix string `env:"ARCHIVE_S3_PREFIX" default:"imports"`

	Region string `env:"ARCHIVE_S3_REGION" envAlt:"AWS_REGION" default:"eu-west-3"`

	// Endpoint targets an S3-compatible service instead of AWS
	Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`

	AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretKey string `env:"ARCHIVE_S3_SECRET_ACCESS_KEY"`
}

// SecretsConfig holds the keys protecting stored credentials.
type SecretsConfig struct {
	// Keys is a comma-separated list of id=base64 keys; the first encrypts
	Keys string `env:"SECRETS_KEYS"`
}

// SyncConfig holds the auto-sync scheduler settings.
type SyncConfig struct {
	// Enabled starts the scheduler in the server (default: false)
	Enabled bool `env:"SYNC_ENABLED" default:"false"`

	// Interval is the time between two cycles (default: 15m)
	Interval time.Duration `env:"SYNC_INTERVAL" default:"15m"`

	// SendEmails sends invitations for scheduled imports (default: true)
	SendEmails bool `env:"SYNC_SEND_EMAILS" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location returns the configured import time zone. Validate guarantees it
// loads; UTC is returned otherwise.
func (c *ImportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const devSessionSecret = "devsessionsecret"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string `env:"PORT" env-default:"8080"`
	ReadTimeout  int    `env:"SERVER_READ_TIMEOUT" env-default:"15"`  // seconds
	WriteTimeout int    `env:"SERVER_WRITE_TIMEOUT" env-default:"15"` // seconds
	IdleTimeout  int    `env:"SERVER_IDLE_TIMEOUT" env-default:"60"`  // seconds
}

// DatabaseConfig selects and configures the credential store backend.
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" env-default:"postgres"` // postgres, sqlite or mongo
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"crm"`
	Password string `env:"DB_PASSWORD" env-default:"crm123"`
	DBName   string `env:"DB_NAME" env-default:"crm"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`

	SQLitePath string `env:"SQLITE_PATH" env-default:"crm.db"`

	MongoURI      string `env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" env-default:"crm"`

	SlowQuery time.Duration `env:"DB_SLOW_QUERY" env-default:"200ms"`
}

// SessionConfig holds token and cookie settings.
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL" env-default:"720h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" env-default:"false"`
	// Verify re-checks role, active flag and session version against the
	// store (through a TTL cache) on every authenticated request.
	Verify     bool          `env:"SESSION_VERIFY" env-default:"true"`
	CacheTTL   time.Duration `env:"SESSION_CACHE_TTL" env-default:"1m"`
	BcryptCost int           `env:"BCRYPT_COST" env-default:"10"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev         bool   `env:"DEV" env-default:"true"`
	Migrations  bool   `env:"MIGRATIONS" env-default:"false"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"text"`
	DefaultLang string `env:"DEFAULT_LANG" env-default:"en"`
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Session.Secret == "" && cfg.App.Dev {
		cfg.Session.Secret = devSessionSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad is Load for process bootstrap.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required outside dev mode"))
	} else if !c.App.Dev && len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.BcryptCost < 4 || c.Session.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 4..31", c.Session.BcryptCost))
	}
	return errors.Join(errs...)
}

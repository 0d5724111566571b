// Package config loads server settings from defaults, an optional .env file,
// GOPHAUTH_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "GOPHAUTH_"

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported mail providers
const (
	MailProviderLog      = "log"
	MailProviderSendGrid = "sendgrid"
)

// Config holds the server settings
type Config struct {
	Address            string        `env:"ADDRESS"              envDefault:":8080"`
	DatabaseDriver     string        `env:"DATABASE_DRIVER"      envDefault:"sqlite"`
	DatabaseDSN        string        `env:"DATABASE_DSN"         envDefault:"gophauth.db"`
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	TokenIssuer        string        `env:"TOKEN_ISSUER"         envDefault:"gophauth"`
	ResetURL           string        `env:"RESET_URL"            envDefault:"http://localhost:3000/reset_password"`
	CORSOrigin         string        `env:"CORS_ORIGIN"          envDefault:"http://localhost:3000"`
	LogLevel           string        `env:"LOG_LEVEL"            envDefault:"info"`
	MailProvider       string        `env:"MAIL_PROVIDER"        envDefault:"log"`
	SendGridAPIKey     string        `env:"SENDGRID_API_KEY"`
	MailFrom           string        `env:"MAIL_FROM"            envDefault:"noreply@localhost"`
	MailFromName       string        `env:"MAIL_FROM_NAME"       envDefault:"gophauth"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL"     envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL"    envDefault:"168h"`
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL"      envDefault:"2m"`
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT"        envDefault:"5s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"     envDefault:"10s"`
	CookieSecure       bool          `env:"COOKIE_SECURE"        envDefault:"false"`
	ShowVersion        bool
}

// Load builds the configuration. The .env file path is taken from
// GOPHAUTH_ENV_FILE (default ".env"); a missing file is ignored. Real
// environment variables win over the file, flags in args win over both.
func Load(args []string) (*Config, error) {
	environ := env.ToMap(os.Environ())

	envFile := environ[EnvPrefix+"ENV_FILE"]
	if envFile == "" {
		envFile = ".env"
	}

	merged, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	for k, v := range environ {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: merged,
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet("gophauth-server", flag.ContinueOnError)

	flags.StringVar(&c.Address, "a", c.Address, "HTTP listen address")
	flags.StringVar(&c.DatabaseDriver, "driver", c.DatabaseDriver, "database driver: sqlite or postgres")
	flags.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN or sqlite file path")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&c.ResetURL, "reset-url", c.ResetURL, "password reset page URL")
	flags.StringVar(&c.CORSOrigin, "cors-origin", c.CORSOrigin, "allowed CORS origin, empty to disable")
	flags.StringVar(&c.MailProvider, "mail", c.MailProvider, "mail provider: log or sendgrid")
	flags.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "set Secure on the refresh cookie")
	flags.BoolVar(&c.ShowVersion, "version", false, "show version information and exit")
	flags.DurationVar(&c.ResetTokenTTL, "reset-ttl", c.ResetTokenTTL, "password reset token lifetime")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	return nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	var errs []error

	if c.AccessTokenSecret == "" {
		errs = append(errs, fmt.Errorf("%sACCESS_TOKEN_SECRET is required", EnvPrefix))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, fmt.Errorf("%sREFRESH_TOKEN_SECRET is required", EnvPrefix))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	switch c.MailProvider {
	case MailProviderLog:
	case MailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			errs = append(errs, fmt.Errorf("%sSENDGRID_API_KEY is required for the sendgrid provider", EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported mail provider %q", c.MailProvider))
	}

	for name, d := range map[string]time.Duration{
		"access token TTL":  c.AccessTokenTTL,
		"refresh token TTL": c.RefreshTokenTTL,
		"reset token TTL":   c.ResetTokenTTL,
		"store timeout":     c.StoreTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel returns LogLevel as a slog.Level
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

package app

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/caarlos0/env/v11"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Config struct {
	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1m"`

	Confirm Confirm `envPrefix:"CONFIRM_"`
	SMTP    SMTP    `envPrefix:"SMTP_"`
}

// Confirm holds the gateway policy and its collaborators' settings.
type Confirm struct {
	TwoFactorDefault string        `env:"TWOFACTOR_DEFAULT" envDefault:"block"` // block, allow or require
	TwoFactorSecure  bool          `env:"TWOFACTOR_SECURE" envDefault:"true"`
	ExpireAfter      time.Duration `env:"EXPIRE_AFTER" envDefault:"60s"`
	PrivilegedGroups []string      `env:"PRIVILEGED_GROUPS" envDefault:"confirmation_admin" envSeparator:","`
	TOTPIssuer       string        `env:"TOTP_ISSUER" envDefault:"Confirm"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`

	StorageMode  string `env:"STORAGE_MODE" envDefault:"memory"` // memory or sqlite
	DatabaseFile string `env:"DATABASE_FILE" envDefault:"confirm.db"`
	CatalogFile  string `env:"CATALOG_FILE"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"chat"`
}

// SMTP configures enrollment mail. With no host, secrets are written to the
// log output instead.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"confirm@localhost"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the gateway cannot start with.
func (c Config) Validate() error {
	if _, err := domain.ParseTwoFactorMode(c.Confirm.TwoFactorDefault); err != nil {
		return fmt.Errorf("CONFIRM_TWOFACTOR_DEFAULT: %w", err)
	}
	switch c.Confirm.StorageMode {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("CONFIRM_STORAGE_MODE: unknown mode %q", c.Confirm.StorageMode)
	}
	if c.Confirm.ExpireAfter <= 0 {
		return fmt.Errorf("CONFIRM_EXPIRE_AFTER: must be positive, got %s", c.Confirm.ExpireAfter)
	}
	if c.Confirm.JWTSecret == "" {
		return fmt.Errorf("CONFIRM_JWT_SECRET is required")
	}
	return nil
}

// TwoFactorDefault is the validated installation default.
func (c Config) TwoFactorDefault() domain.TwoFactorMode {
	mode, _ := domain.ParseTwoFactorMode(c.Confirm.TwoFactorDefault)
	return mode
}

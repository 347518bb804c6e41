package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"account-auth/internal/validation"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MinSecretLength = 32
	MinBcryptCost   = 10
)

var ErrSecretTooShort = fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength)

type Config struct {
	Env  string `env:"APP_ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"8080"`

	Directory DirectoryConfig
	JWT       JWTConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	HTTP      HTTPConfig

	SentryDSN string `env:"SENTRY_DSN"`
	Release   string `env:"APP_RELEASE"`
}

type DirectoryConfig struct {
	Driver          string        `env:"DIRECTORY_DRIVER" env-default:"postgres"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS_ON_STARTUP" env-default:"false"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"10m"`
}

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET" env-required:"true"`
	Expiration time.Duration `env:"JWT_EXPIRATION" env-default:"24h"`
	Issuer     string        `env:"JWT_ISSUER"`
	Leeway     time.Duration `env:"JWT_LEEWAY" env-default:"0s"`
}

type PasswordConfig struct {
	BcryptCost           int  `env:"BCRYPT_COST" env-default:"12"`
	HashConcurrency      int  `env:"HASH_CONCURRENCY" env-default:"0"`
	MinLength            int  `env:"PASSWORD_MIN_LENGTH" env-default:"8"`
	RequireUpper         bool `env:"PASSWORD_REQUIRE_UPPER" env-default:"true"`
	RequireLower         bool `env:"PASSWORD_REQUIRE_LOWER" env-default:"true"`
	RequireDigitOrSymbol bool `env:"PASSWORD_REQUIRE_DIGIT_OR_SYMBOL" env-default:"true"`
}

type RateLimitConfig struct {
	Max    int           `env:"AUTH_RATE_LIMIT_MAX" env-default:"100"`
	Window time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" env-default:"15m"`
}

type HTTPConfig struct {
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"10s"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// Load reads an optional .env file when loadDotEnv is set, then the process
// environment, and validates the result.
func Load(loadDotEnv bool) (*Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.Secret) < MinSecretLength {
		errs = append(errs, ErrSecretTooShort)
	}
	if c.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	if c.JWT.Leeway < 0 {
		errs = append(errs, errors.New("JWT_LEEWAY must not be negative"))
	}

	switch strings.ToLower(c.Directory.Driver) {
	case DriverPostgres:
		if strings.TrimSpace(c.Directory.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres directory"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DIRECTORY_DRIVER %q", c.Directory.Driver))
	}

	if c.Password.BcryptCost < MinBcryptCost || c.Password.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", MinBcryptCost, bcrypt.MaxCost))
	}
	if c.Password.MinLength < 1 || c.Password.MinLength > validation.MaxPasswordBytes {
		errs = append(errs, fmt.Errorf("PASSWORD_MIN_LENGTH must be between 1 and %d", validation.MaxPasswordBytes))
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT_MAX and AUTH_RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) PasswordPolicy() validation.PasswordPolicy {
	return validation.PasswordPolicy{
		MinLength:            c.Password.MinLength,
		RequireUpper:         c.Password.RequireUpper,
		RequireLower:         c.Password.RequireLower,
		RequireDigitOrSymbol: c.Password.RequireDigitOrSymbol,
	}
}

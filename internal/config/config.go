package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database Database `envPrefix:"DATABASE_"`
	Paystack Paystack `envPrefix:"PAYSTACK_"`
	Auth     Auth     `envPrefix:"JWT_"`
	Billing  Billing  `envPrefix:"BILLING_"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"postgres"` // postgres, mysql, sqlite
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type Paystack struct {
	BaseApiURL string        `env:"BASE_API_URL" envDefault:"https://api.paystack.co"`
	SecretKey  string        `env:"SECRET_KEY"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type Auth struct {
	Secret string `env:"SECRET"`
}

type Billing struct {
	Currency            string          `env:"CURRENCY" envDefault:"NGN"`
	TokenPrefix         string          `env:"TOKEN_PREFIX" envDefault:"GVC"`
	SubscriptionPrice   decimal.Decimal `env:"SUBSCRIPTION_PRICE" envDefault:"5000"`
	SubscriptionPeriod  time.Duration   `env:"SUBSCRIPTION_PERIOD" envDefault:"720h"`
	ExpirySweepInterval time.Duration   `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1h"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (h HTTPServer) Address() string {
	return h.Host + ":" + h.Port
}

// Load reads .env (when present) into the process environment and parses it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return Parse(env.Options{})
}

// Parse is Load without the .env step; tests pass Options.Environment.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Paystack.SecretKey == "" {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required"))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Paystack.Timeout <= 0 {
		errs = append(errs, errors.New("PAYSTACK_TIMEOUT must be positive"))
	}
	if c.Billing.SubscriptionPeriod <= 0 {
		errs = append(errs, errors.New("BILLING_SUBSCRIPTION_PERIOD must be positive"))
	}
	if c.Billing.ExpirySweepInterval <= 0 {
		errs = append(errs, errors.New("BILLING_EXPIRY_SWEEP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

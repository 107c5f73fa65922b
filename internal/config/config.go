package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type (
	Config struct {
		Host       string `mapstructure:"HOST"`
		Port       string `mapstructure:"PORT"`
		GRPCPort   string `mapstructure:"GRPC_PORT"`
		DBDriver   string `mapstructure:"DB_DRIVER"`
		DBHost     string `mapstructure:"DB_HOST"`
		DBPort     string `mapstructure:"DB_PORT"`
		DBUser     string `mapstructure:"DB_USER"`
		DBPassword string `mapstructure:"DB_PASSWORD"`
		DBName     string `mapstructure:"DB_NAME"`
		DBSSLMode  string `mapstructure:"DB_SSL_MODE"`

		RedisAddr string        `mapstructure:"REDIS_ADDR"`
		CacheTTL  time.Duration `mapstructure:"CACHE_TTL"`

		SiteURL   string  `mapstructure:"SITE_URL"`
		PageSize  int     `mapstructure:"PAGE_SIZE"`
		RateLimit float64 `mapstructure:"RATE_LIMIT"`
		LogDev    bool    `mapstructure:"LOG_DEV"`

		Limits Limits `mapstructure:",squash"`
	}

	// Limits bounds the numeric fields of a recipe.
	Limits struct {
		MinAmount      int `mapstructure:"MIN_AMOUNT"`
		MaxAmount      int `mapstructure:"MAX_AMOUNT"`
		MinCookingTime int `mapstructure:"MIN_COOKING_TIME"`
		MaxCookingTime int `mapstructure:"MAX_COOKING_TIME"`
	}
)

var defaults = map[string]interface{}{
	"HOST":             "0.0.0.0",
	"PORT":             "1323",
	"GRPC_PORT":        "9000",
	"DB_DRIVER":        DriverPostgres,
	"DB_HOST":          "0.0.0.0",
	"DB_PORT":          "5432",
	"DB_USER":          "user",
	"DB_PASSWORD":      "password",
	"DB_NAME":          "db",
	"DB_SSL_MODE":      sslModeDisable,
	"REDIS_ADDR":       "",
	"CACHE_TTL":        "1h",
	"SITE_URL":         "http://localhost:1323",
	"PAGE_SIZE":        6,
	"RATE_LIMIT":       20,
	"LOG_DEV":          false,
	"MIN_AMOUNT":       1,
	"MAX_AMOUNT":       32000,
	"MIN_COOKING_TIME": 1,
	"MAX_COOKING_TIME": 32000,
}

func NewConfig() (*Config, error) {
	// a missing .env is fine, the environment still applies
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RECIPEBOOK")

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// DefaultLimits are the bounds used when no configuration is loaded.
func DefaultLimits() Limits {
	return Limits{
		MinAmount:      defaults["MIN_AMOUNT"].(int),
		MaxAmount:      defaults["MAX_AMOUNT"].(int),
		MinCookingTime: defaults["MIN_COOKING_TIME"].(int),
		MaxCookingTime: defaults["MAX_COOKING_TIME"].(int),
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func validate(cfg *Config) error {
	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverMemory {
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}
	if cfg.PageSize <= 0 {
		return errors.New(fmt.Sprintf("page size must be positive: %d", cfg.PageSize))
	}
	l := cfg.Limits
	if l.MinAmount < 1 || l.MaxAmount < l.MinAmount {
		return errors.New(fmt.Sprintf("amount bounds are invalid: [%d, %d]", l.MinAmount, l.MaxAmount))
	}
	if l.MinCookingTime < 1 || l.MaxCookingTime < l.MinCookingTime {
		return errors.New(fmt.Sprintf("cooking time bounds are invalid: [%d, %d]", l.MinCookingTime, l.MaxCookingTime))
	}

	validSSLValues := []string{sslModeDisable, sslModeRequire}
	for _, validValue := range validSSLValues {
		if cfg.DBSSLMode == validValue {
			return nil
		}
	}
	return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	minSecretBytes = 32
)

var (
	ErrMissingSecret  = errors.New("JWT_SECRET is required in production")
	ErrWeakSecret     = errors.New("JWT_SECRET must be at least 32 bytes in production")
	ErrInsecureCookie = errors.New("COOKIE_SECURE cannot be disabled in production")
)

// Config centraliza la configuración del servicio. Se construye una sola vez al arrancar
// y se trata como inmutable a partir de ahí.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"3000"`

	StoreBackend  string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"session-auth"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`

	BcryptCost  int `env:"BCRYPT_COST" envDefault:"10"`
	HashWorkers int `env:"HASH_WORKERS" envDefault:"4"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:5500"`

	// EphemeralSecret indica que JWT_SECRET no estaba definido fuera de producción y se
	// generó uno aleatorio para este proceso.
	EphemeralSecret bool `env:"-"`
}

// LoadConfig carga la configuración desde variables de entorno y la valida.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reporta si el proceso corre con APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), EnvProduction)
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required for the redis store")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	origins := c.CORSAllowedOrigins[:0]
	for _, origin := range c.CORSAllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: invalid origin %q", origin)
		}
		origins = append(origins, origin)
	}
	c.CORSAllowedOrigins = origins

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.HashWorkers < 1 {
		return errors.New("HASH_WORKERS must be at least 1")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return ErrMissingSecret
		}
		if len(c.JWTSecret) < minSecretBytes {
			return ErrWeakSecret
		}
		if !c.CookieSecure {
			return ErrInsecureCookie
		}
		return nil
	}

	if c.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate ephemeral secret: %w", err)
		}
		c.JWTSecret = secret
		c.EphemeralSecret = true
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

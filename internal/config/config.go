// Package config loads the service configuration from the environment.
// Secrets are required: there are no built-in defaults for JWT_SECRET or
// the bootstrap admin credentials.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string        `envconfig:"DATABASE_URL" required:"true"`
	HTTPPort    string        `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	RefreshTTL  time.Duration `envconfig:"REFRESH_TTL" default:"168h"`
	AdminTTL    time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"8h"`

	// Bootstrap provisioning. Only consulted when -bootstrap is passed;
	// both must then be set explicitly.
	AdminUsername string `envconfig:"ADMIN_USERNAME"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

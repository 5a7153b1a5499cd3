package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetHost() string
	GetAddr() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMockAPIPort() string
	GetMockAPISecret() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	API
	Session
}

// New loads an optional .env file and parses the environment.
func New() (Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the current environment only.
func Parse() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config New] failed to parse environment")
	}
	return c, nil
}

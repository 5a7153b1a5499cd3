package config

import (
	"os"
	"path/filepath"
	"time"
)

type SessionConfig interface {
	GetTokenFile() string
	GetResolveTimeout() time.Duration
	GetResolveRetries() uint64
	GetLogoutTimeout() time.Duration
}

type Session struct {
	TokenFile      string        `env:"TOKEN_FILE"`
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"15s"`
	ResolveRetries uint64        `env:"RESOLVE_RETRIES" envDefault:"0"` // 0 keeps "any failure means logged out"
	LogoutTimeout  time.Duration `env:"LOGOUT_TIMEOUT" envDefault:"5s"`
}

var _ SessionConfig = Session{}

// GetTokenFile returns where the credential token is persisted between runs.
// Defaults to $XDG_CONFIG_HOME/grandgaze/token.
func (s Session) GetTokenFile() string {
	if s.TokenFile != "" {
		return s.TokenFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "grandgaze", "token")
}

func (s Session) GetResolveTimeout() time.Duration {
	return s.ResolveTimeout
}

func (s Session) GetResolveRetries() uint64 {
	return s.ResolveRetries
}

func (s Session) GetLogoutTimeout() time.Duration {
	return s.LogoutTimeout
}

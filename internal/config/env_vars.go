package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port          string `env:"PORT" envDefault:"3000"`
	Host          string `env:"HOST" envDefault:"127.0.0.1"`
	AppName       string `env:"APP_NAME" envDefault:"GrandGaze"`
	Env           string `env:"ENV" envDefault:"DEV"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	MockAPIPort   string `env:"MOCKAPI_PORT" envDefault:"5000"`
	MockAPISecret string `env:"MOCKAPI_SECRET" envDefault:"grandgaze-dev-secret"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return normalisePort(e.Port)
}

func (e EnvVars) GetHost() string {
	return e.Host
}

// GetAddr returns the listen address of the front-end, e.g. "127.0.0.1:3000"
func (e EnvVars) GetAddr() string {
	return e.Host + e.GetPort()
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetMockAPIPort() string {
	return normalisePort(e.MockAPIPort)
}

func (e EnvVars) GetMockAPISecret() string {
	return e.MockAPISecret
}

func normalisePort(port string) string {
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

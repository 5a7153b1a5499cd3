package config

import "time"

type APIConfig interface {
	GetAPIURL() string
	GetAPITimeout() time.Duration
}

type API struct {
	URL     string        `env:"API_URL" envDefault:"http://localhost:5000/api"`
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
}

var _ APIConfig = API{}

func (a API) GetAPIURL() string {
	return a.URL
}

func (a API) GetAPITimeout() time.Duration {
	return a.Timeout
}

package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/grandgaze/internal/config"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	c, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, "127.0.0.1:3000", c.GetAddr())
	require.Equal(t, "GrandGaze", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:5000/api", c.GetAPIURL())
	require.Equal(t, 10*time.Second, c.GetAPITimeout())
	require.Equal(t, 15*time.Second, c.GetResolveTimeout())
	require.Equal(t, uint64(0), c.GetResolveRetries())
	require.Equal(t, filepath.Join("/tmp/xdg", "grandgaze", "token"), c.GetTokenFile())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", ":8081")
	t.Setenv("ENV", "prod")
	t.Setenv("API_URL", "https://api.example.com/api")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("TOKEN_FILE", "/var/lib/grandgaze/token")
	t.Setenv("RESOLVE_RETRIES", "2")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, https://grandgaze.example.com")

	c, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, ":8081", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, "https://api.example.com/api", c.GetAPIURL())
	require.Equal(t, 3*time.Second, c.GetAPITimeout())
	require.Equal(t, "/var/lib/grandgaze/token", c.GetTokenFile())
	require.Equal(t, uint64(2), c.GetResolveRetries())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:5173"))
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://grandgaze.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://evil.example.com"))
}

func TestParse_InvalidDuration(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")

	_, err := config.Parse()
	require.Error(t, err)
}

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/dashboard", "/dashboard"},
		{"/dashboard?tab=posts", "/dashboard?tab=posts"},
		{"", ""},
		{"dashboard", ""},
		{"//evil.example.com", ""},
		{"/\\evil.example.com", ""},
		{"https://evil.example.com/dashboard", ""},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			require.Equal(t, tt.want, safeNext(tt.next))
		})
	}
}

func TestLoginURL(t *testing.T) {
	require.Equal(t, "/login", loginURL(""))
	require.Equal(t, "/login", loginURL("//evil.example.com"))
	require.Equal(t, "/login?next=%2Fdashboard%3Ftab%3Dposts", loginURL("/dashboard?tab=posts"))
}

func TestReturnPath(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/dashboard?tab=posts", nil)
	require.Equal(t, "/dashboard?tab=posts", returnPath(get))

	post := httptest.NewRequest(http.MethodPost, "/dashboard/posts/p1/delete", nil)
	require.Equal(t, RouteDashboard, returnPath(post))
}

func TestAfterLogin(t *testing.T) {
	require.Equal(t, RouteDashboard, afterLogin(""))
	require.Equal(t, "/dashboard?tab=posts", afterLogin("/dashboard?tab=posts"))
}

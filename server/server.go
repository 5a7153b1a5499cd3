// Package server is the server-rendered web front-end. Every page reads the process-wide
// session; protected pages go through the route guard.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/grandgaze/apiclient"
	"github.com/jrsteele09/grandgaze/institutions"
	"github.com/jrsteele09/grandgaze/internal/config"
	"github.com/jrsteele09/grandgaze/internal/observability"
	"github.com/jrsteele09/grandgaze/posts"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// API is the part of the marketplace client the pages use besides the session itself.
type API interface {
	Register(ctx context.Context, reg institutions.Registration, logo *apiclient.File) (*institutions.Institution, error)
	UpdateProfile(ctx context.Context, update institutions.ProfileUpdate, logo *apiclient.File) (*institutions.Institution, error)
	DeleteAccount(ctx context.Context) error
	ListPosts(ctx context.Context, sector string) ([]posts.Post, error)
	ListMyPosts(ctx context.Context) ([]posts.Post, error)
	CreatePost(ctx context.Context, form posts.Form, document *apiclient.File) (*posts.Post, error)
	UpdatePost(ctx context.Context, id string, form posts.Form, document *apiclient.File) (*posts.Post, error)
	DeletePost(ctx context.Context, id string) error
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	appName   string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	session   *session.Manager
	api       API
	metrics   *observability.Metrics
	nowTime   func() time.Time
	templates map[string]*template.Template
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics exposes metrics on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, manager *session.Manager, api API, options ...ServerOption) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if manager == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if api == nil {
		return nil, errors.New("[Server New] api client is required")
	}

	s := &Server{
		env:     config.GetEnv(),
		appName: config.GetAppName(),
		mux:     http.NewServeMux(),
		config:  config,
		session: manager,
		api:     api,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	templates, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to parse templates")
	}
	s.templates = templates

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

// Package mockapi is an in-memory implementation of the marketplace REST API. It backs the
// integration tests and `cmd/mockapi` for local development.
package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PathPrefix is where the API is mounted.
const PathPrefix = "/api"

const maxUploadSize = 10 << 20

type contextKey string

const claimsKey contextKey = "claims"

// Server serves the marketplace API.
type Server struct {
	mux     *http.ServeMux
	routes  []string
	store   *Store
	issuer  *Issuer
	nowTime func() time.Time
}

type options struct {
	nowTime     func() time.Time
	tokenExpiry time.Duration
	store       *Store
}

// Option configures a Server.
type Option func(*options)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowTime = nowFunc
	}
}

// WithTokenExpiry sets how long issued tokens are valid.
func WithTokenExpiry(d time.Duration) Option {
	return func(o *options) {
		o.tokenExpiry = d
	}
}

// WithStore serves data from an existing store.
func WithStore(store *Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// New creates the API server. Tokens are signed with secret.
func New(secret string, opts ...Option) (*Server, error) {
	o := options{nowTime: time.Now, tokenExpiry: DefaultTokenExpiry}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewStore()
	}

	issuer, err := NewIssuer(secret, o.tokenExpiry, o.nowTime)
	if err != nil {
		return nil, errors.Wrap(err, "[mockapi New] failed to create token issuer")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		store:   o.store,
		issuer:  issuer,
		nowTime: o.nowTime,
	}
	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Store exposes the backing store, e.g. for seeding.
func (s *Server) Store() *Store {
	return s.store
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// IssueToken signs a token for institution id, as a successful login would.
func (s *Server) IssueToken(id string) (string, error) {
	return s.issuer.Issue(id)
}

func (s *Server) initRoutes() {
	p := PathPrefix

	s.RegisterRouteFunc("POST "+p+"/institutions/register", ChainMiddleware(s.RegisterHandler(), s.LoggingMiddleware))
	s.RegisterRouteFunc("POST "+p+"/institutions/login", ChainMiddleware(s.LoginHandler(), s.LoggingMiddleware))
	s.RegisterRouteFunc("POST "+p+"/institutions/logout", ChainMiddleware(s.LogoutHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("GET "+p+"/institutions/me", ChainMiddleware(s.MeHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("PUT "+p+"/institutions/profile", ChainMiddleware(s.UpdateProfileHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("DELETE "+p+"/institutions/profile", ChainMiddleware(s.DeleteProfileHandler(), s.LoggingMiddleware, s.RequireAuth))

	s.RegisterRouteFunc("GET "+p+"/posts", ChainMiddleware(s.ListPostsHandler(), s.LoggingMiddleware))
	s.RegisterRouteFunc("GET "+p+"/posts/my-posts", ChainMiddleware(s.MyPostsHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("POST "+p+"/posts", ChainMiddleware(s.CreatePostHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("PUT "+p+"/posts/{id}", ChainMiddleware(s.UpdatePostHandler(), s.LoggingMiddleware, s.RequireAuth))
	s.RegisterRouteFunc("DELETE "+p+"/posts/{id}", ChainMiddleware(s.DeletePostHandler(), s.LoggingMiddleware, s.RequireAuth))
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Msg("mockapi: request")
		next(w, r)
	}
}

// RequireAuth rejects requests without a valid, unrevoked bearer token for an existing institution.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		claims, err := s.issuer.Verify(raw)
		if err != nil {
			log.Debug().Err(err).Msg("mockapi: token rejected")
			writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		if _, err := s.store.GetByID(claims.Subject); err != nil {
			writeError(w, http.StatusUnauthorized, "Not authorized, institution not found")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func claimsFrom(r *http.Request) *TokenClaims {
	claims, _ := r.Context().Value(claimsKey).(*TokenClaims)
	return claims
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("mockapi: writing response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageBody{Message: message})
}

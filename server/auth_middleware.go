package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/grandgaze/session"
	"github.com/rs/zerolog/log"
)

// RequireSession is the route guard for dashboard routes. While the session is still resolving
// it renders the loading page and never redirects; anonymous callers go to the login page.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")

			switch session.Guard(s.session.Status()) {
			case session.DecisionWait:
				s.renderLoading(w, r)
			case session.DecisionRedirect:
				http.Redirect(w, r, loginURL(returnPath(r)), http.StatusSeeOther)
			default:
				next(w, r)
			}
		}
	}
}

// expireSession signs out locally after the API rejected the stored token mid-session. A GET
// returns to the page that was asked for after logging in again.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		log.Warn().Err(err).Msg("logout after rejected token failed")
	}
	http.Redirect(w, r, loginURL(returnPath(r)), http.StatusSeeOther)
}

// returnPath is where to send the user after logging in. Form posts return to the dashboard.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	return RouteDashboard
}

func loginURL(next string) string {
	if next = safeNext(next); next == "" {
		return RouteLogin
	}
	return RouteLogin + "?next=" + url.QueryEscape(next)
}

// safeNext only allows local absolute paths, so "next" cannot redirect off-site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	layoutData
	Email string // Preserve email on error
	Next  string // Local path to return to after login
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := safeNext(r.URL.Query().Get("next"))
		if s.session.Snapshot().Authenticated() {
			http.Redirect(w, r, afterLogin(next), http.StatusSeeOther)
			return
		}

		data := LoginPageData{
			layoutData: s.layout("Log in"),
			Email:      r.URL.Query().Get("email"),
			Next:       next,
		}
		if r.URL.Query().Get("registered") == "1" {
			data.Notice = "Registration successful. Please log in."
		}
		s.render(w, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := institutions.Credentials{
			Identifier: strings.TrimSpace(r.FormValue("email")),
			Secret:     r.FormValue("password"),
		}
		next := safeNext(r.FormValue("next"))

		if _, err := s.session.Login(r.Context(), creds); err != nil {
			s.renderLoginError(w, err, creds.Identifier, next)
			return
		}

		http.Redirect(w, r, afterLogin(next), http.StatusSeeOther)
	}
}

func (s *Server) renderLoginError(w http.ResponseWriter, err error, email, next string) {
	data := LoginPageData{
		layoutData: s.layout("Log in"),
		Email:      email,
		Next:       next,
	}
	data.Error = apperrors.UserMessage(err)
	if data.Error == "" {
		data.Error = "Login failed"
	}
	s.render(w, errorStatus(err), "login.html", data)
}

// LogoutHandler signs out and returns home. It always succeeds from the user's point of view.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Logout(r.Context()); err != nil {
			log.Warn().Err(err).Msg("logout failed")
		}
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

func afterLogin(next string) string {
	if next == "" {
		return RouteDashboard
	}
	return next
}

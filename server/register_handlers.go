package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/rs/zerolog/log"
)

type registerPage struct {
	layoutData
	Form    institutions.Registration
	Sectors []string
}

// RegisterPageHandler displays the registration form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "register.html", registerPage{
			layoutData: s.layout("Register your institution"),
			Sectors:    institutions.Sectors,
		})
	}
}

// RegisterSubmissionHandler creates the account, then sends the user to log in.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		reg := institutions.Registration{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Email:       strings.TrimSpace(r.FormValue("email")),
			Password:    r.FormValue("password"),
			Sector:      r.FormValue("sector"),
			Description: r.FormValue("description"),
			Website:     strings.TrimSpace(r.FormValue("website")),
			Phone:       strings.TrimSpace(r.FormValue("phone")),
			Address:     r.FormValue("address"),
		}

		logo, done := uploadedFile(r, "logo")
		defer done()

		if _, err := s.api.Register(r.Context(), reg, logo); err != nil {
			log.Info().Err(err).Str("email", reg.Email).Msg("registration failed")
			data := registerPage{
				layoutData: s.layout("Register your institution"),
				Form:       reg,
				Sectors:    institutions.Sectors,
			}
			data.Form.Password = ""
			data.Error = apperrors.UserMessage(err)
			if data.Error == "" {
				data.Error = "Registration failed"
			}
			s.render(w, errorStatus(err), "register.html", data)
			return
		}

		http.Redirect(w, r, RouteLogin+"?registered=1", http.StatusSeeOther)
	}
}

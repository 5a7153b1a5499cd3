package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/rs/zerolog/log"
)

type institutionResponse struct {
	Institution *institutions.Institution `json:"institution"`
	Message     string                    `json:"message,omitempty"`
}

// RegisterHandler creates an account from a multipart form with an optional logo.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		reg := institutions.Registration{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Email:       strings.TrimSpace(r.FormValue("email")),
			Password:    r.FormValue("password"),
			Sector:      r.FormValue("sector"),
			Description: r.FormValue("description"),
			Website:     r.FormValue("website"),
			Phone:       r.FormValue("phone"),
			Address:     r.FormValue("address"),
		}
		if err := reg.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, apperrors.UserMessage(err))
			return
		}

		hash, err := HashPassword(reg.Password)
		if err != nil {
			log.Error().Err(err).Msg("mockapi: hashing password")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		inst, err := s.store.CreateAccount(institutions.Institution{
			Name:        reg.Name,
			Email:       reg.Email,
			Sector:      reg.Sector,
			Description: reg.Description,
			Website:     reg.Website,
			Phone:       reg.Phone,
			Address:     reg.Address,
			Logo:        uploadedFile(r, "logo"),
		}, hash)
		if errors.Is(err, errDuplicate) {
			writeError(w, http.StatusConflict, "Institution already exists")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		writeJSON(w, http.StatusCreated, institutionResponse{Institution: inst, Message: "Registration successful"})
	}
}

// LoginHandler exchanges {email, password} for a token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds institutions.Credentials
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := creds.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, apperrors.UserMessage(err))
			return
		}

		inst, hash, err := s.store.GetByEmail(creds.Identifier)
		if err != nil || !CheckPasswordHash(creds.Secret, hash) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := s.issuer.Issue(inst.ID)
		if err != nil {
			log.Error().Err(err).Msg("mockapi: issuing token")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		writeJSON(w, http.StatusOK, institutions.LoginResponse{Token: token, Institution: inst})
	}
}

// LogoutHandler revokes the presented token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.issuer.Revoke(claimsFrom(r))
		writeJSON(w, http.StatusOK, messageBody{Message: "Logged out successfully"})
	}
}

// MeHandler returns the institution the token belongs to.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := s.store.GetByID(claimsFrom(r).Subject)
		if err != nil {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeJSON(w, http.StatusOK, institutionResponse{Institution: inst})
	}
}

// UpdateProfileHandler replaces the editable profile fields and optionally the logo.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		update := institutions.ProfileUpdate{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Sector:      r.FormValue("sector"),
			Description: r.FormValue("description"),
			Website:     r.FormValue("website"),
			Phone:       r.FormValue("phone"),
			Address:     r.FormValue("address"),
		}
		if err := update.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, apperrors.UserMessage(err))
			return
		}

		inst, err := s.store.UpdateProfile(claimsFrom(r).Subject, update, uploadedFile(r, "logo"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeJSON(w, http.StatusOK, institutionResponse{Institution: inst})
	}
}

// DeleteProfileHandler removes the account and its posts, and revokes the token.
func (s *Server) DeleteProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if err := s.store.DeleteAccount(claims.Subject); err != nil {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		s.issuer.Revoke(claims)
		writeJSON(w, http.StatusOK, messageBody{Message: "Institution deleted"})
	}
}

// uploadedFile records an uploaded file by name and returns its reference, or "" when absent.
func uploadedFile(r *http.Request, field string) string {
	file, header, err := r.FormFile(field)
	if err != nil {
		return ""
	}
	defer file.Close()
	return "/uploads/" + uuid.New().String() + "-" + path.Base(header.Filename)
}

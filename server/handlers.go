package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/grandgaze/apiclient"
	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/posts"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	maxUploadSize = 10 << 20
)

// layoutData is shared by every page
type layoutData struct {
	AppName string
	Title   string
	Session session.Snapshot
	Error   string
	Notice  string
}

func (s *Server) layout(title string) layoutData {
	return layoutData{
		AppName: s.appName,
		Title:   title,
		Session: s.session.Snapshot(),
	}
}

// render executes a page into a buffer first so a template failure never sends a half page.
func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown page template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("page", page).Msg("Failed to render template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// errorStatus picks the response status for a page re-rendered with an error message.
func errorStatus(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrAuthentication):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrConflict), apperrors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

type homePage struct {
	layoutData
	Sectors []string
	Sector  string
	Posts   []posts.Post
	Now     time.Time
}

// HomeHandler lists posts, optionally filtered by ?sector=.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := homePage{
			layoutData: s.layout("Procurement opportunities"),
			Sectors:    institutions.Sectors,
			Now:        s.nowTime(),
		}

		sector, ok := posts.NormalizeSector(r.URL.Query().Get("sector"))
		if !ok {
			data.Error = "Unknown sector"
			s.render(w, http.StatusBadRequest, "home.html", data)
			return
		}
		data.Sector = sector

		list, err := s.api.ListPosts(r.Context(), sector)
		if err != nil {
			log.Warn().Err(err).Str("sector", sector).Msg("listing posts failed")
			data.Error = apperrors.UserMessage(err)
			s.render(w, errorStatus(err), "home.html", data)
			return
		}
		data.Posts = list
		s.render(w, http.StatusOK, "home.html", data)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusNotFound, "not_found.html", s.layout("Page not found"))
	}
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	// Re-check shortly; POSTs come back to the dashboard rather than replaying the form
	w.Header().Set("Refresh", "1; url="+returnPath(r))
	s.render(w, http.StatusOK, "loading.html", s.layout("Loading"))
}

type sessionResponse struct {
	Status        string                    `json:"status"`
	Resolved      bool                      `json:"resolved"`
	Authenticated bool                      `json:"authenticated"`
	Institution   *institutions.Institution `json:"institution,omitempty"`
}

// SessionHandler reports the session snapshot as JSON, e.g. for the loading page poller.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.session.Snapshot()
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(sessionResponse{
			Status:        snap.Status.String(),
			Resolved:      snap.Resolved(),
			Authenticated: snap.Authenticated(),
			Institution:   snap.Identity,
		}); err != nil {
			log.Err(err).Msg("Failed to write session response")
		}
	}
}

// parseForm handles both urlencoded and multipart submissions.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadSize)
	}
	return r.ParseForm()
}

// uploadedFile returns the optional file in field, or nil. Call done when finished with it.
func uploadedFile(r *http.Request, field string) (file *apiclient.File, done func()) {
	done = func() {}
	if r.MultipartForm == nil {
		return nil, done
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, done
	}
	done = func() { _ = f.Close() }
	if header.Size == 0 {
		return nil, done
	}
	return &apiclient.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      f,
	}, done
}

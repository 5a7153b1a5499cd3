package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/posts"
	"github.com/rs/zerolog/log"
)

// Notices shown after a successful dashboard action, keyed by the ?notice= code
var dashboardNotices = map[string]string{
	"created": "Post created.",
	"updated": "Post updated.",
	"deleted": "Post deleted.",
	"profile": "Profile updated.",
}

type dashboardPage struct {
	layoutData
	Identity *institutions.Institution
	Posts    []posts.Post
	Profile  institutions.ProfileUpdate
	NewPost  posts.Form
	EditID   string // Post whose edit form failed validation
	EditPost posts.Form
	Types    []posts.Type
	Sectors  []string
	Now      time.Time
}

func (s *Server) dashboardData(ctx context.Context) (dashboardPage, error) {
	identity := s.session.Identity()
	data := dashboardPage{
		layoutData: s.layout("Dashboard"),
		Identity:   identity,
		Profile:    institutions.ProfileFrom(identity),
		NewPost:    posts.NewForm(),
		Types:      posts.Types,
		Sectors:    institutions.Sectors,
		Now:        s.nowTime(),
	}
	list, err := s.api.ListMyPosts(ctx)
	data.Posts = list
	return data, err
}

// DashboardHandler shows the signed-in institution's posts and profile.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.dashboardData(r.Context())
		if err != nil {
			if apperrors.Is(err, apperrors.ErrAuthentication) {
				s.expireSession(w, r)
				return
			}
			log.Warn().Err(err).Msg("listing my posts failed")
			data.Error = apperrors.UserMessage(err)
			s.render(w, errorStatus(err), "dashboard.html", data)
			return
		}
		data.Notice = dashboardNotices[r.URL.Query().Get("notice")]
		s.render(w, http.StatusOK, "dashboard.html", data)
	}
}

// CreatePostHandler publishes a new post.
func (s *Server) CreatePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		form := postForm(r)
		document, done := uploadedFile(r, "document")
		defer done()

		err := form.Validate(s.nowTime())
		if err == nil {
			_, err = s.api.CreatePost(r.Context(), form, document)
		}
		if err != nil {
			s.dashboardError(w, r, err, func(d *dashboardPage) { d.NewPost = form })
			return
		}
		http.Redirect(w, r, RouteDashboard+"?notice=created", http.StatusSeeOther)
	}
}

// UpdatePostHandler edits one of the institution's posts.
func (s *Server) UpdatePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		id := r.PathValue("id")
		form := postForm(r)
		document, done := uploadedFile(r, "document")
		defer done()

		err := form.Validate(s.nowTime())
		if err == nil {
			_, err = s.api.UpdatePost(r.Context(), id, form, document)
		}
		if err != nil {
			s.dashboardError(w, r, err, func(d *dashboardPage) {
				d.EditID = id
				d.EditPost = form
			})
			return
		}
		http.Redirect(w, r, RouteDashboard+"?notice=updated", http.StatusSeeOther)
	}
}

// DeletePostHandler removes one of the institution's posts.
func (s *Server) DeletePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.api.DeletePost(r.Context(), r.PathValue("id")); err != nil {
			s.dashboardError(w, r, err, nil)
			return
		}
		http.Redirect(w, r, RouteDashboard+"?notice=deleted", http.StatusSeeOther)
	}
}

// UpdateProfileHandler saves the profile and replaces the session identity with the server's copy.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		update := institutions.ProfileUpdate{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Sector:      r.FormValue("sector"),
			Description: r.FormValue("description"),
			Website:     strings.TrimSpace(r.FormValue("website")),
			Phone:       strings.TrimSpace(r.FormValue("phone")),
			Address:     r.FormValue("address"),
		}
		logo, done := uploadedFile(r, "logo")
		defer done()

		_, err := s.session.UpdateProfile(r.Context(), func(ctx context.Context) (*institutions.Institution, error) {
			return s.api.UpdateProfile(ctx, update, logo)
		})
		if err != nil {
			s.dashboardError(w, r, err, func(d *dashboardPage) { d.Profile = update })
			return
		}
		http.Redirect(w, r, RouteDashboard+"?notice=profile", http.StatusSeeOther)
	}
}

// DeleteAccountHandler deletes the institution, signs out and returns home.
func (s *Server) DeleteAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.DeleteAccount(r.Context(), s.api.DeleteAccount); err != nil {
			s.dashboardError(w, r, err, nil)
			return
		}
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

// dashboardError handles a failed dashboard action. A rejected token ends the session; a session
// that changed underneath the request goes back through the guard; anything else re-renders the
// dashboard with the message inline.
func (s *Server) dashboardError(w http.ResponseWriter, r *http.Request, err error, keep func(*dashboardPage)) {
	switch {
	case apperrors.Is(err, apperrors.ErrAuthentication):
		s.expireSession(w, r)
		return
	case apperrors.Is(err, apperrors.ErrInvalidState):
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
		return
	}

	log.Info().Err(err).Str("path", r.URL.Path).Msg("dashboard action failed")
	data, listErr := s.dashboardData(r.Context())
	if listErr != nil {
		log.Warn().Err(listErr).Msg("listing my posts failed")
	}
	if keep != nil {
		keep(&data)
	}
	data.Error = apperrors.UserMessage(err)
	s.render(w, errorStatus(err), "dashboard.html", data)
}

func postForm(r *http.Request) posts.Form {
	return posts.Form{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Type:         posts.Type(r.FormValue("type")),
		Sector:       r.FormValue("sector"),
		Description:  r.FormValue("description"),
		Deadline:     r.FormValue("deadline"),
		Budget:       strings.TrimSpace(r.FormValue("budget")),
		ContactEmail: strings.TrimSpace(r.FormValue("contactEmail")),
		ContactPhone: strings.TrimSpace(r.FormValue("contactPhone")),
		Requirements: r.FormValue("requirements"),
	}
}

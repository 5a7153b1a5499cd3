package mockapi

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/posts"
)

type postsResponse struct {
	Posts []posts.Post `json:"posts"`
}

type postResponse struct {
	Post *posts.Post `json:"post"`
}

// ListPostsHandler lists every post, newest first, optionally filtered by ?sector=.
func (s *Server) ListPostsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, postsResponse{Posts: s.store.ListPosts(r.URL.Query().Get("sector"), "")})
	}
}

// MyPostsHandler lists the caller's posts.
func (s *Server) MyPostsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, postsResponse{Posts: s.store.ListPosts("", claimsFrom(r).Subject)})
	}
}

// CreatePostHandler publishes a post from a multipart form with an optional document.
func (s *Server) CreatePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.parsePost(w, r)
		if !ok {
			return
		}
		created, err := s.store.CreatePost(claimsFrom(r).Subject, p, s.nowTime())
		if err != nil {
			writeError(w, http.StatusNotFound, "Institution not found")
			return
		}
		writeJSON(w, http.StatusCreated, postResponse{Post: created})
	}
}

// UpdatePostHandler replaces a post owned by the caller.
func (s *Server) UpdatePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !s.authorisePost(w, r, id) {
			return
		}
		p, ok := s.parsePost(w, r)
		if !ok {
			return
		}
		updated, err := s.store.UpdatePost(id, p)
		if err != nil {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, postResponse{Post: updated})
	}
}

// DeletePostHandler removes a post owned by the caller.
func (s *Server) DeletePostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !s.authorisePost(w, r, id) {
			return
		}
		if err := s.store.DeletePost(id); err != nil {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, messageBody{Message: "Post deleted"})
	}
}

// authorisePost writes 404 for unknown posts and 403 for posts owned by someone else.
func (s *Server) authorisePost(w http.ResponseWriter, r *http.Request, id string) bool {
	owner, err := s.store.PostOwner(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found")
		return false
	}
	if owner != claimsFrom(r).Subject {
		writeError(w, http.StatusForbidden, "Not authorized to modify this post")
		return false
	}
	return true
}

func (s *Server) parsePost(w http.ResponseWriter, r *http.Request) (posts.Post, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return posts.Post{}, false
	}

	form := posts.Form{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Type:         posts.Type(r.FormValue("type")),
		Sector:       r.FormValue("sector"),
		Description:  r.FormValue("description"),
		Deadline:     r.FormValue("deadline"),
		Budget:       r.FormValue("budget"),
		ContactEmail: r.FormValue("contactEmail"),
		ContactPhone: r.FormValue("contactPhone"),
		Requirements: strings.Join(r.MultipartForm.Value["requirements[]"], "\n"),
	}
	if err := form.Validate(s.nowTime()); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.UserMessage(err))
		return posts.Post{}, false
	}

	deadline, _ := time.Parse(posts.DateLayout, form.Deadline)
	return posts.Post{
		Title:        form.Title,
		Type:         form.Type,
		Sector:       form.Sector,
		Description:  form.Description,
		Deadline:     deadline,
		Budget:       form.Budget,
		ContactEmail: form.ContactEmail,
		ContactPhone: form.ContactPhone,
		Requirements: posts.ParseRequirements(form.Requirements),
		Document:     uploadedFile(r, "document"),
	}, true
}

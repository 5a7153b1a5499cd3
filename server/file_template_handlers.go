package server

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/jrsteele09/grandgaze/posts"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

// pages rendered inside the layout
var pageTemplates = []string{
	"home.html",
	"login.html",
	"register.html",
	"dashboard.html",
	"loading.html",
	"not_found.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006")
	},
	"excerpt": func(p posts.Post, n int) string {
		return p.Excerpt(n)
	},
	"expired": func(p posts.Post, now time.Time) bool {
		return p.Expired(now)
	},
	"lower": strings.ToLower,
	// editForm shows the rejected submission for the post being edited, the stored post otherwise
	"editForm": func(p posts.Post, editID string, edit posts.Form) posts.Form {
		if p.ID == editID {
			return edit
		}
		return posts.FormFrom(p)
	},
	"postFormData": func(action, key string, form posts.Form, page dashboardPage) postFormData {
		return postFormData{Action: action, Key: key, Form: form, Types: page.Types, Sectors: page.Sectors}
	},
}

// postFormData feeds the shared "postForm" template used for both new and edited posts
type postFormData struct {
	Action  string
	Key     string // Keeps element ids unique when several forms share a page
	Form    posts.Form
	Types   []posts.Type
	Sectors []string
}

// ParseTemplate parses a page together with the shared layout from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return pages, nil
}

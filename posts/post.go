package posts

import (
	"strings"
	"time"

	"github.com/jrsteele09/grandgaze/institutions"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type is the kind of procurement opportunity.
type Type string

const (
	TypeRFP        Type = "RFP"
	TypeRFQ        Type = "RFQ"
	TypeInvitation Type = "Invitation"
)

// Types lists the post types in display order.
var Types = []Type{TypeRFP, TypeRFQ, TypeInvitation}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Post is a procurement listing as returned by the remote API.
type Post struct {
	ID           string                    `json:"_id"`
	Title        string                    `json:"title"`
	Type         Type                      `json:"type"`
	Sector       string                    `json:"sector"`
	Description  string                    `json:"description"`
	Deadline     time.Time                 `json:"deadline"`
	Budget       string                    `json:"budget,omitempty"`
	ContactEmail string                    `json:"contactEmail,omitempty"`
	ContactPhone string                    `json:"contactPhone,omitempty"`
	Requirements []string                  `json:"requirements,omitempty"`
	Document     string                    `json:"document,omitempty"`
	Institution  *institutions.Institution `json:"institution,omitempty"`
	CreatedAt    time.Time                 `json:"createdAt"`
}

// Excerpt shortens the description to at most n runes, adding an ellipsis when cut.
func (p Post) Excerpt(n int) string {
	runes := []rune(p.Description)
	if len(runes) <= n {
		return p.Description
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// Expired reports whether the deadline has passed at now.
func (p Post) Expired(now time.Time) bool {
	return !p.Deadline.IsZero() && p.Deadline.Before(now)
}

// NormalizeSector maps user input onto a known sector ("education" -> "Education").
// Empty input means no filter. Unknown sectors return ok == false.
func NormalizeSector(s string) (sector string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	s = cases.Title(language.English).String(strings.ToLower(s))
	if institutions.IsSector(s) {
		return s, true
	}
	return "", false
}

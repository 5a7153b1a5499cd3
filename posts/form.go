package posts

import (
	"strings"
	"time"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
)

// DateLayout is the deadline format used by forms.
const DateLayout = "2006-01-02"

// Form holds the editable fields of a post.
type Form struct {
	Title        string
	Type         Type
	Sector       string
	Description  string
	Deadline     string // DateLayout
	Budget       string
	ContactEmail string
	ContactPhone string
	Requirements string // One requirement per line
}

// NewForm returns an empty form defaulting to an RFP.
func NewForm() Form {
	return Form{Type: TypeRFP}
}

// FormFrom pre-fills a form for editing an existing post.
func FormFrom(p Post) Form {
	f := Form{
		Title:        p.Title,
		Type:         p.Type,
		Sector:       p.Sector,
		Description:  p.Description,
		Budget:       p.Budget,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
		Requirements: strings.Join(p.Requirements, "\n"),
	}
	if !p.Deadline.IsZero() {
		f.Deadline = p.Deadline.UTC().Format(DateLayout)
	}
	return f
}

// Validate checks required fields and that the deadline is not in the past relative to today.
func (f Form) Validate(today time.Time) error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return apperrors.Validation("Title is required")
	case !f.Type.Valid():
		return apperrors.Validation("Type must be RFP, RFQ or Invitation")
	case strings.TrimSpace(f.Sector) == "":
		return apperrors.Validation("Sector is required")
	case strings.TrimSpace(f.Description) == "":
		return apperrors.Validation("Description is required")
	}

	deadline, err := time.Parse(DateLayout, f.Deadline)
	if err != nil {
		return apperrors.Validation("Deadline must be a date (YYYY-MM-DD)")
	}
	y, m, d := today.Date()
	if deadline.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return apperrors.Validation("Deadline cannot be in the past")
	}
	return nil
}

// Fields returns the multipart form fields. Requirements are sent as repeated "requirements[]".
func (f Form) Fields() [][2]string {
	fields := [][2]string{
		{"title", f.Title},
		{"type", string(f.Type)},
		{"sector", f.Sector},
		{"description", f.Description},
		{"deadline", f.Deadline},
		{"budget", f.Budget},
		{"contactEmail", f.ContactEmail},
		{"contactPhone", f.ContactPhone},
	}
	for _, req := range ParseRequirements(f.Requirements) {
		fields = append(fields, [2]string{"requirements[]", req})
	}
	return fields
}

// ParseRequirements splits text into one requirement per non-blank line.
func ParseRequirements(text string) []string {
	var reqs []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			reqs = append(reqs, line)
		}
	}
	return reqs
}

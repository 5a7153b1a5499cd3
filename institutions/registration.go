package institutions

import (
	"strings"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
)

// Registration holds the fields submitted when creating an institution account.
type Registration struct {
	Name        string
	Email       string
	Password    string
	Sector      string
	Description string
	Website     string
	Phone       string
	Address     string
}

// Validate checks required fields. The remote API remains the authority.
func (r Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return apperrors.Validation("Institution name is required")
	case strings.TrimSpace(r.Email) == "":
		return apperrors.Validation("Email is required")
	case !validEmail(r.Email):
		return apperrors.Validation("Please enter a valid email address")
	case r.Password == "":
		return apperrors.Validation("Password is required")
	case !IsSector(r.Sector):
		return apperrors.Validation("Please select a sector")
	}
	return nil
}

// Fields returns the multipart form fields in submission order.
func (r Registration) Fields() [][2]string {
	return [][2]string{
		{"name", r.Name},
		{"email", r.Email},
		{"password", r.Password},
		{"sector", r.Sector},
		{"description", r.Description},
		{"website", r.Website},
		{"phone", r.Phone},
		{"address", r.Address},
	}
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	Name        string
	Sector      string
	Description string
	Website     string
	Phone       string
	Address     string
}

// ProfileFrom pre-fills an update form from the current identity.
func ProfileFrom(i *Institution) ProfileUpdate {
	if i == nil {
		return ProfileUpdate{}
	}
	return ProfileUpdate{
		Name:        i.Name,
		Sector:      i.Sector,
		Description: i.Description,
		Website:     i.Website,
		Phone:       i.Phone,
		Address:     i.Address,
	}
}

func (p ProfileUpdate) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.Validation("Institution name is required")
	}
	if p.Sector != "" && !IsSector(p.Sector) {
		return apperrors.Validation("Unknown sector")
	}
	return nil
}

// Fields returns the multipart form fields in submission order.
func (p ProfileUpdate) Fields() [][2]string {
	return [][2]string{
		{"name", p.Name},
		{"sector", p.Sector},
		{"description", p.Description},
		{"website", p.Website},
		{"phone", p.Phone},
		{"address", p.Address},
	}
}

package institutions

import (
	"encoding/json"
	"net/mail"
	"strings"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
)

// Sectors the marketplace accepts for institutions and posts.
var Sectors = []string{
	"Technology",
	"Healthcare",
	"Education",
	"Construction",
	"Finance",
	"Agriculture",
	"Energy",
	"Transportation",
}

// IsSector reports whether s is one of Sectors (exact match).
func IsSector(s string) bool {
	for _, sector := range Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// Institution is the authenticated account profile.
type Institution struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Sector      string `json:"sector,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Logo        string `json:"logo,omitempty"` // Reference to the uploaded logo
}

// UnmarshalJSON accepts both "_id" and "id" for the identifier.
func (i *Institution) UnmarshalJSON(data []byte) error {
	type plain Institution
	var aux struct {
		plain
		AltID string `json:"id,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = Institution(aux.plain)
	if i.ID == "" {
		i.ID = aux.AltID
	}
	return nil
}

// Clone returns a copy that shares no state with i. A nil receiver returns nil.
func (i *Institution) Clone() *Institution {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Initial is the first letter of the name, used when no logo is set.
func (i *Institution) Initial() string {
	if i == nil || i.Name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(i.Name)[0]))
}

// Credentials identify an institution at login.
type Credentials struct {
	Identifier string `json:"email"`
	Secret     string `json:"password"`
}

// Validate checks the shape of the credentials before any remote call.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" || c.Secret == "" {
		return apperrors.Validation("Email and password are required")
	}
	if !validEmail(c.Identifier) {
		return apperrors.Validation("Please enter a valid email address")
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s)
}

// LoginResponse is what the remote API returns for a successful login.
type LoginResponse struct {
	Token       string       `json:"token"`
	Institution *Institution `json:"institution"`
}

package apiclient

import (
	"context"
	"net/http"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
)

type institutionEnvelope struct {
	Institution *institutions.Institution `json:"institution"`
	Message     string                    `json:"message,omitempty"`
}

// Register creates an institution account. The logo is optional. The returned institution may be
// nil when the server only acknowledges the registration.
func (c *Client) Register(ctx context.Context, reg institutions.Registration, logo *File) (*institutions.Institution, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	req, err := c.newMultipartRequest(ctx, http.MethodPost, c.endpoint(nil, "institutions", "register"), reg.Fields(), "logo", logo)
	if err != nil {
		return nil, err
	}
	var out institutionEnvelope
	if err := c.do(req, false, &out); err != nil {
		return nil, err
	}
	return out.Institution, nil
}

// Login exchanges credentials for a token and the institution profile.
func (c *Client) Login(ctx context.Context, creds institutions.Credentials) (*institutions.LoginResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint(nil, "institutions", "login"), creds)
	if err != nil {
		return nil, err
	}
	var out institutions.LoginResponse
	if err := c.do(req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the stored token on the server.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint(nil, "institutions", "logout"), nil)
	if err != nil {
		return err
	}
	return c.do(req, true, nil)
}

// CurrentIdentity returns the institution the stored token belongs to.
func (c *Client) CurrentIdentity(ctx context.Context) (*institutions.Institution, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.endpoint(nil, "institutions", "me"), nil)
	if err != nil {
		return nil, err
	}
	var out institutionEnvelope
	if err := c.do(req, true, &out); err != nil {
		return nil, err
	}
	if out.Institution == nil {
		return nil, apperrors.New(apperrors.ErrServer, "identity missing from response")
	}
	return out.Institution, nil
}

// UpdateProfile replaces the editable profile fields and, optionally, the logo.
func (c *Client) UpdateProfile(ctx context.Context, update institutions.ProfileUpdate, logo *File) (*institutions.Institution, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	req, err := c.newMultipartRequest(ctx, http.MethodPut, c.endpoint(nil, "institutions", "profile"), update.Fields(), "logo", logo)
	if err != nil {
		return nil, err
	}
	var out institutionEnvelope
	if err := c.do(req, true, &out); err != nil {
		return nil, err
	}
	if out.Institution == nil {
		return nil, apperrors.New(apperrors.ErrServer, "profile missing from response")
	}
	return out.Institution, nil
}

// DeleteAccount removes the signed-in institution and its posts.
func (c *Client) DeleteAccount(ctx context.Context) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, c.endpoint(nil, "institutions", "profile"), nil)
	if err != nil {
		return err
	}
	return c.do(req, true, nil)
}

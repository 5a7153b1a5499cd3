package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/posts"
)

type postsEnvelope struct {
	Posts []posts.Post `json:"posts"`
}

type postEnvelope struct {
	Post *posts.Post `json:"post"`
}

// ListPosts returns public posts, newest first. An empty sector lists every sector.
func (c *Client) ListPosts(ctx context.Context, sector string) ([]posts.Post, error) {
	var query url.Values
	if sector != "" {
		query = url.Values{"sector": {sector}}
	}
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.endpoint(query, "posts"), nil)
	if err != nil {
		return nil, err
	}
	var out postsEnvelope
	if err := c.do(req, false, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// ListMyPosts returns the signed-in institution's posts.
func (c *Client) ListMyPosts(ctx context.Context) ([]posts.Post, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.endpoint(nil, "posts", "my-posts"), nil)
	if err != nil {
		return nil, err
	}
	var out postsEnvelope
	if err := c.do(req, true, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// CreatePost publishes a post with an optional document.
func (c *Client) CreatePost(ctx context.Context, form posts.Form, document *File) (*posts.Post, error) {
	req, err := c.newMultipartRequest(ctx, http.MethodPost, c.endpoint(nil, "posts"), form.Fields(), "document", document)
	if err != nil {
		return nil, err
	}
	return c.doPost(req)
}

// UpdatePost replaces the fields of post id; the document is only replaced when given.
func (c *Client) UpdatePost(ctx context.Context, id string, form posts.Form, document *File) (*posts.Post, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	req, err := c.newMultipartRequest(ctx, http.MethodPut, c.endpoint(nil, "posts", id), form.Fields(), "document", document)
	if err != nil {
		return nil, err
	}
	return c.doPost(req)
}

// DeletePost removes post id.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	req, err := c.newJSONRequest(ctx, http.MethodDelete, c.endpoint(nil, "posts", id), nil)
	if err != nil {
		return err
	}
	return c.do(req, true, nil)
}

func (c *Client) doPost(req *http.Request) (*posts.Post, error) {
	var out postEnvelope
	if err := c.do(req, true, &out); err != nil {
		return nil, err
	}
	if out.Post == nil {
		return nil, apperrors.New(apperrors.ErrServer, "post missing from response")
	}
	return out.Post, nil
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return apperrors.Validation("invalid post id")
	}
	return nil
}

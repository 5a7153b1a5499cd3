// Package apiclient talks to the marketplace REST API. Authenticated calls carry the stored
// token as a bearer credential; every failure is mapped onto the internal/errors taxonomy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every request unless WithTimeout says otherwise
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader is set on every outgoing request
	RequestIDHeader = "X-Request-ID"

	maxResponseSize = 4 << 20
)

var errNoToken = errors.New("no stored token")

// File is an optional upload (logo or post document). The reader is streamed as-is.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Client is the marketplace API client.
type Client struct {
	baseURL *url.URL
	public  *http.Client
	authed  *http.Client
}

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport sets the underlying round tripper, e.g. one instrumented with metrics.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// New creates a client for the API at baseURL. The token is read from store on every
// authenticated request, so logins and logouts take effect immediately.
func New(baseURL string, store tokenstore.Store, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[apiclient New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[apiclient New] token store is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient New] invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("[apiclient New] unsupported scheme %q", u.Scheme)
	}

	o := options{timeout: DefaultTimeout, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	base := &requestIDTransport{next: o.transport}
	return &Client{
		baseURL: u,
		public:  &http.Client{Transport: base, Timeout: o.timeout},
		authed: &http.Client{
			Transport: &oauth2.Transport{Source: &storeTokenSource{store: store}, Base: base},
			Timeout:   o.timeout,
		},
	}, nil
}

// storeTokenSource hands the stored token to oauth2.Transport without caching it.
type storeTokenSource struct {
	store tokenstore.Store
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.store.Load()
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if token == "" {
		return nil, errNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(RequestIDHeader, uuid.New().String())
	return t.next.RoundTrip(r)
}

func (c *Client) endpoint(query url.Values, elem ...string) string {
	u := c.baseURL.JoinPath(elem...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[apiclient] encoding request body")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient] building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newMultipartRequest(ctx context.Context, method, endpoint string, fields [][2]string, fileField string, file *File) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, errors.Wrapf(err, "[apiclient] writing field %s", field[0])
		}
	}

	if file != nil && file.Reader != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fileDisposition(fileField, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, errors.Wrapf(err, "[apiclient] creating %s part", fileField)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, errors.Wrapf(err, "[apiclient] reading %s", file.Name)
		}
	}

	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "[apiclient] closing multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient] building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(req *http.Request, authenticated bool, out any) error {
	client := c.public
	if authenticated {
		client = c.authed
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &apperrors.Error{
			Kind:       apperrors.ErrServer,
			Message:    "malformed response from server",
			StatusCode: resp.StatusCode,
			Err:        errors.Wrap(err, "[apiclient] decoding response"),
		}
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
}

func statusError(status int, body io.Reader) error {
	var eb errorBody
	data, _ := io.ReadAll(body)
	if err := json.Unmarshal(data, &eb); err != nil || strings.TrimSpace(eb.Message) == "" {
		eb.Message = http.StatusText(status)
	}
	return apperrors.FromStatus(status, eb.Message)
}

func transportError(err error) error {
	if errors.Is(err, errNoToken) {
		return apperrors.Authentication("Not authorized, no token")
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Network(errors.Wrap(err, "[apiclient] request failed"))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileDisposition builds the Content-Disposition of a file part, quoting the names the same way
// multipart.Writer.CreateFormFile does.
func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}

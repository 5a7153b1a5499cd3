package apiclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/grandgaze/apiclient"
	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/mockapi"
	"github.com/jrsteele09/grandgaze/posts"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
	"github.com/stretchr/testify/require"
)

var _ session.Remote = (*apiclient.Client)(nil)

const (
	testEmail    = "a@b.com"
	testPassword = "password123"
)

type testFixture struct {
	api    *mockapi.Server
	server *httptest.Server
	store  *tokenstore.MemoryStore
	client *apiclient.Client
	seen   *headerRecorder
}

// headerRecorder captures the headers of every request the client sends.
type headerRecorder struct {
	mu      sync.Mutex
	headers []http.Header
	next    http.RoundTripper
}

func (h *headerRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	h.mu.Lock()
	h.headers = append(h.headers, req.Header.Clone())
	h.mu.Unlock()
	return h.next.RoundTrip(req)
}

func (h *headerRecorder) last() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.headers) == 0 {
		return nil
	}
	return h.headers[len(h.headers)-1]
}

func (h *headerRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.headers)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api, err := mockapi.New("test-secret", mockapi.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore("")
	seen := &headerRecorder{next: http.DefaultTransport}
	client, err := apiclient.New(server.URL+mockapi.PathPrefix, store, apiclient.WithTransport(seen), apiclient.WithTimeout(5*time.Second))
	require.NoError(t, err)

	return &testFixture{api: api, server: server, store: store, client: client, seen: seen}
}

func (f *testFixture) register(t *testing.T) {
	t.Helper()
	_, err := f.client.Register(context.Background(), institutions.Registration{
		Name: "Acme U", Email: testEmail, Password: testPassword, Sector: "Education",
	}, nil)
	require.NoError(t, err)
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	resp, err := f.client.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
	require.NoError(t, err)
	require.NoError(t, f.store.Save(resp.Token))
}

func TestNew(t *testing.T) {
	store := tokenstore.NewMemoryStore("")

	_, err := apiclient.New("", store)
	require.Error(t, err)

	_, err = apiclient.New("http://localhost:5000/api", nil)
	require.Error(t, err)

	_, err = apiclient.New("ftp://localhost/api", store)
	require.Error(t, err)

	_, err = apiclient.New("http://localhost:5000/api/", store)
	require.NoError(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("register with a logo", func(t *testing.T) {
		inst, err := f.client.Register(context.Background(), institutions.Registration{
			Name: "Acme U", Email: testEmail, Password: testPassword, Sector: "Education", Website: "https://acme.edu",
		}, &apiclient.File{Name: "logo.png", ContentType: "image/png", Reader: strings.NewReader("png")})
		require.NoError(t, err)
		require.NotEmpty(t, inst.ID)
		require.True(t, strings.HasPrefix(inst.Logo, "/uploads/"))
		require.True(t, strings.HasSuffix(inst.Logo, "-logo.png"))
	})

	t.Run("duplicate registration is a conflict", func(t *testing.T) {
		_, err := f.client.Register(context.Background(), institutions.Registration{
			Name: "Acme U", Email: testEmail, Password: testPassword, Sector: "Education",
		}, nil)
		require.True(t, apperrors.Is(err, apperrors.ErrConflict))
		require.Equal(t, "Institution already exists", apperrors.UserMessage(err))
	})

	t.Run("invalid registration fails before sending", func(t *testing.T) {
		before := f.seen.count()
		_, err := f.client.Register(context.Background(), institutions.Registration{Name: "x", Email: "bad"}, nil)
		require.True(t, apperrors.Is(err, apperrors.ErrValidation))
		require.Equal(t, before, f.seen.count())
	})

	t.Run("login returns a token", func(t *testing.T) {
		resp, err := f.client.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, "Acme U", resp.Institution.Name)
		require.Empty(t, f.seen.last().Get("Authorization"), "login is not a bearer call")
	})

	t.Run("wrong password is an authentication error with the server message", func(t *testing.T) {
		_, err := f.client.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: "wrong"})
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
		require.Equal(t, "Invalid credentials", apperrors.UserMessage(err))

		var apiErr *apperrors.Error
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}

func TestAuthenticatedCalls(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	t.Run("no stored token fails without a request", func(t *testing.T) {
		before := f.seen.count()
		_, err := f.client.CurrentIdentity(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
		require.Equal(t, before, f.seen.count())
	})

	t.Run("unreadable token store is a storage error", func(t *testing.T) {
		f.store.FailLoad = errors.New("permission denied")
		defer func() { f.store.FailLoad = nil }()

		_, err := f.client.CurrentIdentity(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrStorage))
	})

	t.Run("identity uses the stored token as a bearer credential", func(t *testing.T) {
		f.login(t)
		token := f.store.Token()

		inst, err := f.client.CurrentIdentity(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Acme U", inst.Name)

		headers := f.seen.last()
		require.Equal(t, "Bearer "+token, headers.Get("Authorization"))
		require.NotEmpty(t, headers.Get(apiclient.RequestIDHeader))
	})

	t.Run("a rejected token is an authentication error", func(t *testing.T) {
		good := f.store.Token()
		require.NoError(t, f.store.Save("tok-123"))
		defer func() { require.NoError(t, f.store.Save(good)) }()

		_, err := f.client.CurrentIdentity(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
	})

	t.Run("profile update", func(t *testing.T) {
		inst, err := f.client.UpdateProfile(context.Background(), institutions.ProfileUpdate{
			Name: "Acme University", Sector: "Technology", Phone: "555-0100",
		}, nil)
		require.NoError(t, err)
		require.Equal(t, "Acme University", inst.Name)
		require.Equal(t, "555-0100", inst.Phone)
	})

	t.Run("logout invalidates the token on the server", func(t *testing.T) {
		require.NoError(t, f.client.Logout(context.Background()))

		_, err := f.client.CurrentIdentity(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
	})
}

func TestPosts(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	f.login(t)
	ctx := context.Background()

	form := posts.Form{
		Title:        "Forty laptops",
		Type:         posts.TypeRFP,
		Sector:       "Technology",
		Description:  "Student laptops for the new lab",
		Deadline:     "2026-04-01",
		Budget:       "40000",
		Requirements: "16GB RAM\n\n  512GB SSD  \n",
	}

	created, err := f.client.CreatePost(ctx, form, &apiclient.File{Name: "tender.pdf", Reader: strings.NewReader("%PDF")})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, []string{"16GB RAM", "512GB SSD"}, created.Requirements)
	require.True(t, strings.HasSuffix(created.Document, "-tender.pdf"))
	require.Equal(t, "Acme U", created.Institution.Name)

	t.Run("listing by sector", func(t *testing.T) {
		list, err := f.client.ListPosts(ctx, "Technology")
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = f.client.ListPosts(ctx, "Healthcare")
		require.NoError(t, err)
		require.Empty(t, list)

		list, err = f.client.ListPosts(ctx, "")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("my posts", func(t *testing.T) {
		list, err := f.client.ListMyPosts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, created.ID, list[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		form.Title = "Fifty laptops"
		updated, err := f.client.UpdatePost(ctx, created.ID, form, nil)
		require.NoError(t, err)
		require.Equal(t, "Fifty laptops", updated.Title)
		require.Equal(t, created.Document, updated.Document)
	})

	t.Run("server validation surfaces as a validation error", func(t *testing.T) {
		bad := form
		bad.Deadline = "2020-01-01"
		_, err := f.client.CreatePost(ctx, bad, nil)
		require.True(t, apperrors.Is(err, apperrors.ErrValidation))
		require.Equal(t, "Deadline cannot be in the past", apperrors.UserMessage(err))
	})

	t.Run("unknown post is not found", func(t *testing.T) {
		err := f.client.DeletePost(ctx, "missing")
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		err = f.client.DeletePost(ctx, "../institutions/profile")
		require.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.client.DeletePost(ctx, created.ID))
		list, err := f.client.ListMyPosts(ctx)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("delete account", func(t *testing.T) {
		require.NoError(t, f.client.DeleteAccount(ctx))
		_, err := f.client.CurrentIdentity(ctx)
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     error
		expected string
	}{
		{"bad request", http.StatusBadRequest, `{"message":"Title is required"}`, apperrors.ErrValidation, "Title is required"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"Bad sector"}`, apperrors.ErrValidation, "Bad sector"},
		{"forbidden", http.StatusForbidden, `{"message":"Not allowed"}`, apperrors.ErrAuthentication, "Not allowed"},
		{"conflict", http.StatusConflict, `{"message":"Institution already exists"}`, apperrors.ErrConflict, "Institution already exists"},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, apperrors.ErrServer, apperrors.GenericRetryMessage},
		{"no message", http.StatusBadRequest, `not json`, apperrors.ErrValidation, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			client, err := apiclient.New(ts.URL, tokenstore.NewMemoryStore(""))
			require.NoError(t, err)

			_, err = client.ListPosts(context.Background(), "")
			require.True(t, apperrors.Is(err, tt.kind), "got %v", err)
			require.Equal(t, tt.expected, apperrors.UserMessage(err))
		})
	}

	t.Run("malformed success body is a server error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		}))
		defer ts.Close()

		client, err := apiclient.New(ts.URL, tokenstore.NewMemoryStore(""))
		require.NoError(t, err)
		_, err = client.ListPosts(context.Background(), "")
		require.True(t, apperrors.Is(err, apperrors.ErrServer))
	})

	t.Run("unreachable server is a network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		client, err := apiclient.New(url, tokenstore.NewMemoryStore(""))
		require.NoError(t, err)
		_, err = client.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
		require.Equal(t, apperrors.GenericRetryMessage, apperrors.UserMessage(err))
	})

	t.Run("timeout is a network error", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		client, err := apiclient.New(ts.URL, tokenstore.NewMemoryStore(""), apiclient.WithTimeout(20*time.Millisecond))
		require.NoError(t, err)
		_, err = client.ListPosts(context.Background(), "")
		require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
	})
}

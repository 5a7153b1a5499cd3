package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/grandgaze/apiclient/apifake"
	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testToken    = "tok-123"
	testEmail    = "a@b.com"
	testPassword = "correct-horse"
	testName     = "Acme U"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	logins      []string
}

func (o *recordingObserver) RecordTransition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+"->"+to)
}

func (o *recordingObserver) RecordLogin(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins = append(o.logins, result)
}

func (o *recordingObserver) Transitions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.transitions...)
}

func (o *recordingObserver) Logins() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.logins...)
}

type testFixture struct {
	store    *tokenstore.MemoryStore
	remote   *apifake.FakeRemote
	observer *recordingObserver
	manager  *session.Manager
}

// setupTestFixture creates a manager whose store holds storedToken ("" for none), with one
// registered account that can log in with testEmail/testPassword and owns testToken.
func setupTestFixture(t *testing.T, storedToken string, opts ...session.Option) *testFixture {
	t.Helper()

	store := tokenstore.NewMemoryStore(storedToken)
	remote := apifake.NewFakeRemote(store)
	remote.AddAccount(testEmail, testPassword, institutions.Institution{ID: "inst-1", Name: testName, Sector: "Education"})
	remote.AddToken(testToken, testEmail)

	observer := &recordingObserver{}
	opts = append([]session.Option{session.WithObserver(observer)}, opts...)

	m, err := session.New(remote, store, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return &testFixture{store: store, remote: remote, observer: observer, manager: m}
}

func TestNew(t *testing.T) {
	store := tokenstore.NewMemoryStore("")

	_, err := session.New(nil, store)
	require.Error(t, err)

	_, err = session.New(apifake.NewFakeRemote(store), nil)
	require.Error(t, err)

	m, err := session.New(apifake.NewFakeRemote(store), store)
	require.NoError(t, err)
	require.Equal(t, session.StatusUnresolved, m.Status())
	require.Nil(t, m.Identity())
}

func TestResolve(t *testing.T) {
	t.Run("no stored token resolves anonymous without a remote call", func(t *testing.T) {
		f := setupTestFixture(t, "")

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Nil(t, snap.Identity)
		require.Equal(t, 0, f.remote.IdentityCalls())
	})

	t.Run("valid stored token resolves authenticated", func(t *testing.T) {
		f := setupTestFixture(t, testToken)

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		require.NotNil(t, snap.Identity)
		require.Equal(t, testName, snap.Identity.Name)
		require.Equal(t, testToken, f.store.Token())
		require.Equal(t, []string{"unresolved->authenticated"}, f.observer.Transitions())
	})

	t.Run("rejected stored token resolves anonymous and clears the token", func(t *testing.T) {
		f := setupTestFixture(t, "tok-expired")

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Nil(t, snap.Identity)
		require.Empty(t, f.store.Token())
		require.Equal(t, 1, f.store.Clears())
	})

	t.Run("network failure resolves anonymous and clears the token", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.remote.IdentityErr = apperrors.Network(errors.New("connection refused"))

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Empty(t, f.store.Token())
	})

	t.Run("unreadable token store resolves anonymous", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.store.FailLoad = errors.New("permission denied")

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Equal(t, 0, f.remote.IdentityCalls())
	})

	t.Run("resolve is a no-op once resolved", func(t *testing.T) {
		f := setupTestFixture(t, testToken)

		first := f.manager.Resolve(context.Background())
		second := f.manager.Resolve(context.Background())
		require.Equal(t, first.Status, second.Status)
		require.Equal(t, 1, f.remote.IdentityCalls())
	})

	t.Run("concurrent callers share one resolution", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.remote.IdentityGate = make(chan struct{})
		f.remote.IdentityStarted = make(chan struct{}, 10)

		const callers = 8
		results := make(chan session.Snapshot, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- f.manager.Resolve(context.Background())
			}()
		}

		<-f.remote.IdentityStarted
		require.Equal(t, session.StatusUnresolved, f.manager.Status())
		close(f.remote.IdentityGate)
		wg.Wait()
		close(results)

		for snap := range results {
			require.Equal(t, session.StatusAuthenticated, snap.Status)
			require.Equal(t, testName, snap.Identity.Name)
		}
		require.Equal(t, 1, f.remote.IdentityCalls())
	})

	t.Run("caller whose context ends gets the unresolved snapshot", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.remote.IdentityGate = make(chan struct{})
		f.remote.IdentityStarted = make(chan struct{}, 1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan session.Snapshot, 1)
		go func() { done <- f.manager.Resolve(ctx) }()

		<-f.remote.IdentityStarted
		cancel()
		require.Equal(t, session.StatusUnresolved, (<-done).Status)

		// Resolution carries on regardless
		close(f.remote.IdentityGate)
		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAuthenticated, snap.Status)
	})

	t.Run("transient failures are retried when enabled", func(t *testing.T) {
		f := setupTestFixture(t, testToken, session.WithResolveRetries(3, time.Millisecond))
		f.remote.IdentityErrs = []error{
			apperrors.Network(errors.New("timeout")),
			apperrors.FromStatus(503, "unavailable"),
		}

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		require.Equal(t, 3, f.remote.IdentityCalls())
	})

	t.Run("rejections are not retried", func(t *testing.T) {
		f := setupTestFixture(t, "tok-expired", session.WithResolveRetries(3, time.Millisecond))

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Equal(t, 1, f.remote.IdentityCalls())
	})

	t.Run("slow identity check is bounded by the resolve timeout", func(t *testing.T) {
		f := setupTestFixture(t, testToken, session.WithResolveTimeout(20*time.Millisecond))
		f.remote.IdentityGate = make(chan struct{})
		defer close(f.remote.IdentityGate)

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Empty(t, f.store.Token())
	})
}

func TestLogin(t *testing.T) {
	t.Run("success persists the token and authenticates", func(t *testing.T) {
		f := setupTestFixture(t, "")

		identity, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.NoError(t, err)
		require.Equal(t, testName, identity.Name)

		snap := f.manager.Snapshot()
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		require.Equal(t, testName, snap.Identity.Name)
		require.NotEmpty(t, f.store.Token())
		require.True(t, f.remote.TokenValid(f.store.Token()))
		require.Equal(t, []string{"success"}, f.observer.Logins())
	})

	t.Run("rejected credentials leave the session anonymous", func(t *testing.T) {
		f := setupTestFixture(t, "")

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: "wrong"})
		require.Error(t, err)
		require.True(t, apperrors.Is(err, apperrors.ErrAuthentication))
		require.Equal(t, "Invalid credentials", apperrors.UserMessage(err))

		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Empty(t, f.store.Token())
		require.Equal(t, 0, f.store.Saves())
		require.Equal(t, []string{"rejected"}, f.observer.Logins())
	})

	t.Run("malformed input fails without a remote call", func(t *testing.T) {
		f := setupTestFixture(t, "")

		for _, creds := range []institutions.Credentials{
			{Identifier: "", Secret: "x"},
			{Identifier: testEmail, Secret: ""},
			{Identifier: "not-an-email", Secret: "x"},
		} {
			_, err := f.manager.Login(context.Background(), creds)
			require.True(t, apperrors.Is(err, apperrors.ErrValidation), "creds %+v", creds)
		}
		require.Equal(t, 0, f.remote.LoginCalls())
	})

	t.Run("network failure surfaces a generic message", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.remote.LoginErr = apperrors.Network(errors.New("dial tcp: connection refused"))

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
		require.Equal(t, apperrors.GenericRetryMessage, apperrors.UserMessage(err))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
	})

	t.Run("token persistence failure does not authenticate", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.store.FailSave = errors.New("disk full")

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.True(t, apperrors.Is(err, apperrors.ErrStorage))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Nil(t, f.manager.Identity())
	})

	t.Run("failed login while authenticated keeps the current session", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		require.Equal(t, session.StatusAuthenticated, f.manager.Resolve(context.Background()).Status)

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: "wrong"})
		require.Error(t, err)
		require.Equal(t, session.StatusAuthenticated, f.manager.Status())
		require.Equal(t, testName, f.manager.Identity().Name)
		require.Equal(t, testToken, f.store.Token())
	})

	t.Run("login waits for an in-flight resolution", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.remote.IdentityGate = make(chan struct{})
		f.remote.IdentityStarted = make(chan struct{}, 1)

		go f.manager.Resolve(context.Background())
		<-f.remote.IdentityStarted

		done := make(chan error, 1)
		go func() {
			_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
			done <- err
		}()

		select {
		case <-done:
			t.Fatal("login finished before resolution")
		case <-time.After(20 * time.Millisecond):
		}
		require.Equal(t, 0, f.remote.LoginCalls())

		close(f.remote.IdentityGate)
		require.NoError(t, <-done)
		require.Equal(t, session.StatusAuthenticated, f.manager.Status())
		require.Equal(t, 1, f.remote.LoginCalls())
	})

	t.Run("closed manager rejects login", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.manager.Close()

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})
}

func TestLogout(t *testing.T) {
	t.Run("logout invalidates remotely and clears the token", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Nil(t, f.manager.Identity())
		require.Empty(t, f.store.Token())
		require.Equal(t, 1, f.remote.LogoutCalls())
		require.False(t, f.remote.TokenValid(testToken))
	})

	t.Run("remote failure still logs out locally", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())
		f.remote.LogoutErr = apperrors.Network(errors.New("connection reset"))

		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Empty(t, f.store.Token())
	})

	t.Run("logout while anonymous is a no-op", func(t *testing.T) {
		f := setupTestFixture(t, "")

		require.NoError(t, f.manager.Logout(context.Background()))
		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Equal(t, 0, f.remote.LogoutCalls())
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		require.NoError(t, f.manager.Logout(context.Background()))
		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, 1, f.remote.LogoutCalls())
		require.Equal(t, []string{"unresolved->authenticated", "authenticated->anonymous"}, f.observer.Transitions())
	})

	t.Run("logout from unresolved awaits resolution", func(t *testing.T) {
		f := setupTestFixture(t, testToken)

		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Equal(t, 1, f.remote.IdentityCalls())
		require.Equal(t, 1, f.remote.LogoutCalls())
	})

	t.Run("resolve after logout makes no remote call", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())
		require.NoError(t, f.manager.Logout(context.Background()))

		snap := f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, snap.Status)
		require.Equal(t, 1, f.remote.IdentityCalls())
	})

	t.Run("token clear failure still ends anonymous", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())
		f.store.FailClear = errors.New("read-only filesystem")

		require.NoError(t, f.manager.Logout(context.Background()))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
	})
}

func TestUpdateIdentity(t *testing.T) {
	t.Run("replaces the identity while authenticated", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		updated := &institutions.Institution{ID: "inst-1", Name: "Acme University", Email: testEmail}
		require.NoError(t, f.manager.UpdateIdentity(updated))
		require.Equal(t, "Acme University", f.manager.Identity().Name)
		require.Equal(t, session.StatusAuthenticated, f.manager.Status())

		// The manager keeps its own copy
		updated.Name = "mutated"
		require.Equal(t, "Acme University", f.manager.Identity().Name)
	})

	t.Run("fails while anonymous", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.manager.Resolve(context.Background())

		err := f.manager.UpdateIdentity(&institutions.Institution{Name: "x"})
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Nil(t, f.manager.Identity())
	})

	t.Run("fails while unresolved", func(t *testing.T) {
		f := setupTestFixture(t, testToken)

		err := f.manager.UpdateIdentity(&institutions.Institution{Name: "x"})
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("rejects a nil profile", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		require.True(t, apperrors.Is(f.manager.UpdateIdentity(nil), apperrors.ErrValidation))
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Run("applies the profile returned by the server", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		update := institutions.ProfileUpdate{Name: "Acme Polytechnic", Sector: "Technology"}
		identity, err := f.manager.UpdateProfile(context.Background(), func(ctx context.Context) (*institutions.Institution, error) {
			return f.remote.UpdateProfile(ctx, update)
		})
		require.NoError(t, err)
		require.Equal(t, "Acme Polytechnic", identity.Name)
		require.Equal(t, "Technology", f.manager.Identity().Sector)
	})

	t.Run("remote errors propagate and leave the identity alone", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		_, err := f.manager.UpdateProfile(context.Background(), func(ctx context.Context) (*institutions.Institution, error) {
			return nil, apperrors.FromStatus(400, "Name is required")
		})
		require.True(t, apperrors.Is(err, apperrors.ErrValidation))
		require.Equal(t, testName, f.manager.Identity().Name)
	})

	t.Run("requires an authenticated session", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.manager.Resolve(context.Background())

		called := false
		_, err := f.manager.UpdateProfile(context.Background(), func(ctx context.Context) (*institutions.Institution, error) {
			called = true
			return nil, nil
		})
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
		require.False(t, called)
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Run("signs out after the account is removed", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		require.NoError(t, f.manager.DeleteAccount(context.Background(), f.remote.DeleteAccount))
		require.Equal(t, session.StatusAnonymous, f.manager.Status())
		require.Empty(t, f.store.Token())
		require.False(t, f.remote.TokenValid(testToken))
	})

	t.Run("remote failure keeps the session", func(t *testing.T) {
		f := setupTestFixture(t, testToken)
		f.manager.Resolve(context.Background())

		err := f.manager.DeleteAccount(context.Background(), func(ctx context.Context) error {
			return apperrors.Network(errors.New("timeout"))
		})
		require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
		require.Equal(t, session.StatusAuthenticated, f.manager.Status())
		require.Equal(t, testToken, f.store.Token())
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("subscribers see the current snapshot then every transition", func(t *testing.T) {
		f := setupTestFixture(t, "")
		ch, cancel := f.manager.Subscribe()
		defer cancel()

		require.Equal(t, session.StatusUnresolved, (<-ch).Status)

		f.manager.Resolve(context.Background())
		require.Equal(t, session.StatusAnonymous, (<-ch).Status)

		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.NoError(t, err)
		snap := <-ch
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		require.Equal(t, testName, snap.Identity.Name)
	})

	t.Run("a slow subscriber only keeps the latest snapshot", func(t *testing.T) {
		f := setupTestFixture(t, "")
		ch, cancel := f.manager.Subscribe()
		defer cancel()

		f.manager.Resolve(context.Background())
		_, err := f.manager.Login(context.Background(), institutions.Credentials{Identifier: testEmail, Secret: testPassword})
		require.NoError(t, err)

		snap := <-ch
		require.Equal(t, session.StatusAuthenticated, snap.Status)
		require.NotNil(t, snap.Identity)

		select {
		case extra := <-ch:
			t.Fatalf("unexpected snapshot %v", extra.Status)
		default:
		}
	})

	t.Run("cancel closes the channel and is safe to repeat", func(t *testing.T) {
		f := setupTestFixture(t, "")
		ch, cancel := f.manager.Subscribe()
		<-ch

		cancel()
		cancel()
		_, open := <-ch
		require.False(t, open)
	})

	t.Run("close ends every subscription", func(t *testing.T) {
		f := setupTestFixture(t, "")
		ch, cancel := f.manager.Subscribe()
		defer cancel()
		<-ch

		f.manager.Close()
		_, open := <-ch
		require.False(t, open)

		late, lateCancel := f.manager.Subscribe()
		defer lateCancel()
		_, open = <-late
		require.False(t, open)
	})
}

func TestSnapshotConsistency(t *testing.T) {
	f := setupTestFixture(t, testToken)
	f.manager.Resolve(context.Background())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := f.manager.Snapshot()
			if snap.Authenticated() != (snap.Identity != nil) {
				t.Errorf("torn snapshot: status %s identity %v", snap.Status, snap.Identity)
				return
			}
		}
	}()

	creds := institutions.Credentials{Identifier: testEmail, Secret: testPassword}
	for i := 0; i < 20; i++ {
		require.NoError(t, f.manager.Logout(context.Background()))
		_, err := f.manager.Login(context.Background(), creds)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

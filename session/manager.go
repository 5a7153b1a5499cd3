// Package session owns the client-side authentication state: the credential token, the signed-in
// institution and the Unresolved -> Authenticated | Anonymous state machine that route guards consume.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

const (
	defaultResolveTimeout = 15 * time.Second
	defaultLogoutTimeout  = 5 * time.Second
	defaultRetryBase      = 200 * time.Millisecond

	resolveKey = "resolve"
)

// Remote is the part of the marketplace API the manager depends on.
// The implementation attaches the stored token as a bearer credential itself.
type Remote interface {
	Login(ctx context.Context, creds institutions.Credentials) (*institutions.LoginResponse, error)
	Logout(ctx context.Context) error
	CurrentIdentity(ctx context.Context) (*institutions.Institution, error)
}

// Observer is notified of transitions and login attempts (metrics).
type Observer interface {
	RecordTransition(from, to string)
	RecordLogin(result string)
}

// Manager is the single owner of the session. Construct one per process and pass it to
// whatever needs to read or change the session.
type Manager struct {
	remote Remote
	store  tokenstore.Store

	resolveTimeout time.Duration
	logoutTimeout  time.Duration
	resolveRetries uint64
	retryBase      time.Duration
	observer       Observer

	opMu         sync.Mutex // serializes resolve/login/logout/update
	resolveGroup singleflight.Group

	mu      sync.RWMutex // guards everything below
	state   Snapshot
	subs    map[uint64]chan Snapshot
	nextSub uint64
	closed  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolveTimeout bounds the startup token validation.
func WithResolveTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.resolveTimeout = d
		}
	}
}

// WithLogoutTimeout bounds the best-effort remote logout.
func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.logoutTimeout = d
		}
	}
}

// WithResolveRetries retries transient (network / 5xx) failures of the startup validation.
// Zero, the default, treats any failure as logged out.
func WithResolveRetries(retries uint64, base time.Duration) Option {
	return func(m *Manager) {
		m.resolveRetries = retries
		if base > 0 {
			m.retryBase = base
		}
	}
}

// WithObserver registers an observer for transitions and login attempts.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// New creates a Manager in the Unresolved state.
func New(remote Remote, store tokenstore.Store, options ...Option) (*Manager, error) {
	if remote == nil {
		return nil, errors.New("[session New] remote is required")
	}
	if store == nil {
		return nil, errors.New("[session New] token store is required")
	}

	m := &Manager{
		remote:         remote,
		store:          store,
		resolveTimeout: defaultResolveTimeout,
		logoutTimeout:  defaultLogoutTimeout,
		retryBase:      defaultRetryBase,
		state:          Snapshot{Status: StatusUnresolved},
		subs:           make(map[uint64]chan Snapshot),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Snapshot returns the current status and identity, read together.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Status
}

// Identity returns a copy of the signed-in institution, or nil.
func (m *Manager) Identity() *institutions.Institution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Identity.Clone()
}

// Resolve settles the startup state from the stored token. It never fails: every error ends in
// StatusAnonymous with the stored token cleared.
//
// Only the first call does any work. Concurrent callers share that in-flight resolution and later
// calls return the current snapshot. The work is detached from ctx; if ctx ends first the caller
// gets the current (possibly still unresolved) snapshot while resolution carries on.
func (m *Manager) Resolve(ctx context.Context) Snapshot {
	if snap := m.Snapshot(); snap.Resolved() {
		return snap
	}

	detached := context.WithoutCancel(ctx)
	ch := m.resolveGroup.DoChan(resolveKey, func() (any, error) {
		return m.resolveOnce(detached), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Snapshot)
	case <-ctx.Done():
		return m.Snapshot()
	}
}

func (m *Manager) resolveOnce(ctx context.Context) Snapshot {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if snap := m.Snapshot(); snap.Resolved() || m.isClosed() {
		return snap
	}

	token, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("session: stored token unreadable, continuing signed out")
		m.clearToken()
		return m.transition(StatusAnonymous, nil, "token unreadable")
	}
	if token == "" {
		return m.transition(StatusAnonymous, nil, "no stored token")
	}

	ctx, cancel := context.WithTimeout(ctx, m.resolveTimeout)
	defer cancel()

	identity, err := m.fetchIdentity(ctx)
	if err == nil && identity == nil {
		err = apperrors.New(apperrors.ErrServer, "empty identity in response")
	}
	if err != nil {
		// Expired tokens and transient failures are treated the same way
		log.Info().Err(err).Msg("session: stored token rejected")
		m.clearToken()
		return m.transition(StatusAnonymous, nil, "token rejected")
	}

	return m.transition(StatusAuthenticated, identity, "stored token accepted")
}

func (m *Manager) fetchIdentity(ctx context.Context) (*institutions.Institution, error) {
	if m.resolveRetries == 0 {
		return m.remote.CurrentIdentity(ctx)
	}

	var identity *institutions.Institution
	backoff := retry.WithMaxRetries(m.resolveRetries, retry.NewExponential(m.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := m.remote.CurrentIdentity(ctx)
		if err != nil {
			if apperrors.IsRetryable(err) {
				log.Debug().Err(err).Msg("session: retrying identity check")
				return retry.RetryableError(err)
			}
			return err
		}
		identity = id
		return nil
	})
	return identity, err
}

// Login exchanges credentials for a token. On success the token is persisted and the session
// becomes Authenticated. On failure nothing changes: no token is stored and the status is kept.
func (m *Manager) Login(ctx context.Context, creds institutions.Credentials) (*institutions.Institution, error) {
	if err := creds.Validate(); err != nil {
		m.recordLogin(err)
		return nil, err
	}

	m.Resolve(ctx)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return nil, apperrors.InvalidState("session manager is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Network(err)
	}

	resp, err := m.remote.Login(ctx, creds)
	if err == nil && (resp == nil || resp.Token == "" || resp.Institution == nil) {
		err = apperrors.New(apperrors.ErrServer, "login response missing token or institution")
	}
	if err != nil {
		m.recordLogin(err)
		log.Info().Err(err).Str("email", creds.Identifier).Msg("session: login failed")
		return nil, err
	}

	if err := m.store.Save(resp.Token); err != nil {
		storageErr := apperrors.Storage(err)
		m.recordLogin(storageErr)
		log.Error().Err(err).Msg("session: persisting token failed")
		return nil, storageErr
	}

	m.recordLogin(nil)
	snap := m.transition(StatusAuthenticated, resp.Institution, "login")
	return snap.Identity, nil
}

// Logout always ends Anonymous with the stored token removed. The remote invalidation is
// best-effort: its failure is logged, never returned. Logging out while already signed out
// is a no-op that makes no remote call.
func (m *Manager) Logout(ctx context.Context) error {
	m.Resolve(ctx)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return apperrors.InvalidState("session manager is closed")
	}

	token, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("session: stored token unreadable during logout")
	}
	if err == nil && token == "" && m.Status() == StatusAnonymous {
		return nil
	}

	if token != "" {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		if err := m.remote.Logout(rctx); err != nil {
			log.Warn().Err(err).Msg("session: remote logout failed, logging out locally")
		}
		cancel()
	}

	m.clearToken()
	m.transition(StatusAnonymous, nil, "logout")
	return nil
}

// UpdateIdentity replaces the signed-in identity in place, e.g. after a profile update.
// It fails with an InvalidStateError unless the session is Authenticated.
func (m *Manager) UpdateIdentity(profile *institutions.Institution) error {
	if profile == nil {
		return apperrors.Validation("profile is required")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.requireAuthenticated(); err != nil {
		return err
	}
	m.transition(StatusAuthenticated, profile, "identity updated")
	return nil
}

// UpdateProfile runs a remote profile update for the signed-in institution and applies the
// returned profile with UpdateIdentity semantics. Remote errors are returned unchanged.
func (m *Manager) UpdateProfile(ctx context.Context, update func(ctx context.Context) (*institutions.Institution, error)) (*institutions.Institution, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.requireAuthenticated(); err != nil {
		return nil, err
	}

	profile, err := update(ctx)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.New(apperrors.ErrServer, "profile update returned no institution")
	}

	snap := m.transition(StatusAuthenticated, profile, "profile updated")
	return snap.Identity, nil
}

// DeleteAccount runs a remote account deletion and, when it succeeds, signs out locally.
func (m *Manager) DeleteAccount(ctx context.Context, remove func(ctx context.Context) error) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.requireAuthenticated(); err != nil {
		return err
	}
	if err := remove(ctx); err != nil {
		return err
	}

	m.clearToken()
	m.transition(StatusAnonymous, nil, "account deleted")
	return nil
}

// Subscribe returns a channel that receives every published snapshot, starting with the current
// one. A subscriber that falls behind only keeps the latest snapshot. Call cancel to unsubscribe.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state.clone()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close disposes of the manager: subscriber channels are closed and further changes fail.
// The stored token is left in place for the next run.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}

// transition sets status and identity together and publishes the result. Caller holds opMu.
func (m *Manager) transition(to Status, identity *institutions.Institution, reason string) Snapshot {
	if to != StatusAuthenticated {
		identity = nil
	}

	m.mu.Lock()
	from := m.state.Status
	if from == to && to != StatusAuthenticated {
		snap := m.state.clone()
		m.mu.Unlock()
		return snap
	}
	m.state = Snapshot{Status: to, Identity: identity.Clone()}
	snap := m.state.clone()
	for _, ch := range m.subs {
		publish(ch, m.state.clone())
	}
	m.mu.Unlock()

	log.Info().Str("from", from.String()).Str("to", to.String()).Str("reason", reason).Msg("session: transition")
	if m.observer != nil {
		m.observer.RecordTransition(from.String(), to.String())
	}
	return snap
}

// publish delivers snap, replacing a stale undelivered value. Caller holds mu.
func publish(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (m *Manager) clearToken() {
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("session: clearing stored token failed")
	}
}

func (m *Manager) requireAuthenticated() error {
	if m.isClosed() {
		return apperrors.InvalidState("session manager is closed")
	}
	if status := m.Status(); status != StatusAuthenticated {
		return apperrors.Newf(apperrors.ErrInvalidState, "not signed in (session is %s)", status)
	}
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) recordLogin(err error) {
	if m.observer == nil {
		return
	}
	m.observer.RecordLogin(loginResult(err))
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.Is(err, apperrors.ErrValidation):
		return "invalid_input"
	case apperrors.Is(err, apperrors.ErrAuthentication):
		return "rejected"
	case apperrors.Is(err, apperrors.ErrNetwork):
		return "network"
	case apperrors.Is(err, apperrors.ErrStorage):
		return "storage"
	default:
		return "error"
	}
}

package apifake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
)

type account struct {
	password    string
	institution institutions.Institution
}

// FakeRemote is an in-memory stand-in for the marketplace API. Like the real client it reads
// the bearer token from the token store on every authenticated call.
type FakeRemote struct {
	store tokenstore.Store

	lock     sync.Mutex
	accounts map[string]*account // email -> account
	tokens   map[string]string   // token -> email

	loginCalls    int
	logoutCalls   int
	identityCalls int

	// Injected failures
	LoginErr    error
	LogoutErr   error
	IdentityErr error
	// IdentityErrs are returned, in order, by the next CurrentIdentity calls before normal behaviour resumes
	IdentityErrs []error

	// IdentityGate, when set, blocks CurrentIdentity until it is closed or ctx ends
	IdentityGate chan struct{}
	// IdentityStarted, when set, receives a value each time CurrentIdentity is entered
	IdentityStarted chan struct{}
}

// NewFakeRemote creates a fake that authenticates requests with the token held in store.
func NewFakeRemote(store tokenstore.Store) *FakeRemote {
	return &FakeRemote{
		store:    store,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
	}
}

// AddAccount registers an institution that can log in with email/password.
func (f *FakeRemote) AddAccount(email, password string, inst institutions.Institution) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.Email = email
	f.accounts[email] = &account{password: password, institution: inst}
}

// AddToken makes token valid for the account with email.
func (f *FakeRemote) AddToken(token, email string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tokens[token] = email
}

// RevokeToken invalidates token, as if it had expired.
func (f *FakeRemote) RevokeToken(token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.tokens, token)
}

// TokenValid reports whether token is still accepted.
func (f *FakeRemote) TokenValid(token string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	_, ok := f.tokens[token]
	return ok
}

func (f *FakeRemote) Login(ctx context.Context, creds institutions.Credentials) (*institutions.LoginResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.loginCalls++

	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	acc, ok := f.accounts[creds.Identifier]
	if !ok || acc.password != creds.Secret {
		return nil, apperrors.Authentication("Invalid credentials")
	}

	token := "tok-" + uuid.New().String()
	f.tokens[token] = creds.Identifier
	inst := acc.institution
	return &institutions.LoginResponse{Token: token, Institution: &inst}, nil
}

func (f *FakeRemote) Logout(ctx context.Context) error {
	token, _ := f.store.Load()

	f.lock.Lock()
	defer f.lock.Unlock()
	f.logoutCalls++

	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *FakeRemote) CurrentIdentity(ctx context.Context) (*institutions.Institution, error) {
	f.lock.Lock()
	f.identityCalls++
	gate, started := f.IdentityGate, f.IdentityStarted
	f.lock.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, apperrors.Network(ctx.Err())
		}
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if len(f.IdentityErrs) > 0 {
		err := f.IdentityErrs[0]
		f.IdentityErrs = f.IdentityErrs[1:]
		return nil, err
	}
	if f.IdentityErr != nil {
		return nil, f.IdentityErr
	}
	token, err := f.store.Load()
	if err != nil || token == "" {
		return nil, apperrors.Authentication("Not authorized, no token")
	}
	email, ok := f.tokens[token]
	if !ok {
		return nil, apperrors.Authentication("Not authorized, token failed")
	}
	inst := f.accounts[email].institution
	return &inst, nil
}

// UpdateProfile applies fields to the account behind the stored token.
func (f *FakeRemote) UpdateProfile(ctx context.Context, update institutions.ProfileUpdate) (*institutions.Institution, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	token, _ := f.store.Load()

	f.lock.Lock()
	defer f.lock.Unlock()

	email, ok := f.tokens[token]
	if !ok {
		return nil, apperrors.Authentication("Not authorized, token failed")
	}
	acc := f.accounts[email]
	acc.institution.Name = update.Name
	acc.institution.Sector = update.Sector
	acc.institution.Description = update.Description
	acc.institution.Website = update.Website
	acc.institution.Phone = update.Phone
	acc.institution.Address = update.Address
	inst := acc.institution
	return &inst, nil
}

// DeleteAccount removes the account behind the stored token and all its tokens.
func (f *FakeRemote) DeleteAccount(ctx context.Context) error {
	token, _ := f.store.Load()

	f.lock.Lock()
	defer f.lock.Unlock()

	email, ok := f.tokens[token]
	if !ok {
		return apperrors.Authentication("Not authorized, token failed")
	}
	delete(f.accounts, email)
	for t, e := range f.tokens {
		if e == email {
			delete(f.tokens, t)
		}
	}
	return nil
}

// LoginCalls returns how many times Login was called.
func (f *FakeRemote) LoginCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.loginCalls
}

// LogoutCalls returns how many times Logout was called.
func (f *FakeRemote) LogoutCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}

// IdentityCalls returns how many times CurrentIdentity was called.
func (f *FakeRemote) IdentityCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.identityCalls
}

package session

import "github.com/jrsteele09/grandgaze/institutions"

// Status is the authentication state of the process-wide session.
type Status int

const (
	// StatusUnresolved is the initial state, before the stored token has been checked
	StatusUnresolved Status = iota
	// StatusAuthenticated means the identity is known and the stored token was accepted
	StatusAuthenticated
	// StatusAnonymous means nobody is signed in
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Snapshot is a read-only projection of the session. Status and Identity always belong to
// the same transition: Identity is non-nil iff Status is StatusAuthenticated.
type Snapshot struct {
	Status   Status
	Identity *institutions.Institution
}

// Authenticated reports whether the snapshot carries a signed-in identity.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Resolved reports whether startup resolution has finished.
func (s Snapshot) Resolved() bool {
	return s.Status != StatusUnresolved
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Status: s.Status, Identity: s.Identity.Clone()}
}

// Decision is what a route guard does with a request for a protected view.
type Decision int

const (
	// DecisionWait renders a neutral waiting indicator; the session is still resolving
	DecisionWait Decision = iota
	// DecisionAllow lets the request through
	DecisionAllow
	// DecisionRedirect sends the caller to the login entry point
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	}
	return "unknown"
}

// Guard decides access to a protected view. It never redirects while the session is unresolved.
func Guard(status Status) Decision {
	switch status {
	case StatusAuthenticated:
		return DecisionAllow
	case StatusAnonymous:
		return DecisionRedirect
	default:
		return DecisionWait
	}
}

package tokenstore

// Store persists the credential token between runs.
// Only the session manager writes to it.
type Store interface {
	// Load returns the stored token, or "" when none is stored
	Load() (string, error)

	// Save replaces the stored token
	Save(token string) error

	// Clear removes the stored token. Clearing an empty store is not an error
	Clear() error
}

package tokenstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the token in a single file readable only by the current user.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "[FileStore Load] reading %s", s.path)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token atomically: a temp file in the same directory is renamed over the target.
func (s *FileStore) Save(token string) error {
	if token == "" {
		return errors.New("[FileStore Save] empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "[FileStore Save] creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return errors.Wrap(err, "[FileStore Save] creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore Save] chmod")
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore Save] write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore Save] close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "[FileStore Save] renaming to %s", s.path)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "[FileStore Clear] removing %s", s.path)
	}
	return nil
}

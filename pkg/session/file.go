package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artistmail/webmail/pkg/config"
)

// FileStore keeps the session as a JSON document named after the storage key.
type FileStore struct {
	path string
}

var _ Store = &FileStore{}

// NewFileStore creates a FileStore inside the configured directory.
func NewFileStore(c config.Session) (Store, error) {
	if c.Path == "" {
		return nil, errors.New("file session store requires a path")
	}
	if c.Key == "" {
		return nil, errors.New("session store requires a key")
	}
	return &FileStore{path: filepath.Join(c.Path, c.Key+".json")}, nil
}

// Path returns the location of the session document.
func (f *FileStore) Path() string {
	return f.path
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context) (*Session, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

// Set implements Store.  The document is written to a temporary file and renamed into place.
func (f *FileStore) Set(_ context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Clear implements Store.
func (f *FileStore) Clear(_ context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// decode parses a stored session, treating an identity without user_id as absent.
func decode(b []byte) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("corrupt stored session: %w", err)
	}
	if !s.Valid() {
		return nil, ErrNotExist
	}
	return s, nil
}

// Package session holds the signed-in identity and the durable stores that retain it between
// runs.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
)

// ErrNotExist indicates no identity is stored.
var ErrNotExist = errors.New("no stored session")

// Session is the authenticated identity of the current user.  Its JSON form is the one the
// auth endpoint returns, and the one written to storage.
type Session struct {
	UserID   model.ID `json:"user_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	IsAdmin  bool     `json:"is_admin"`
}

// FromUser converts an auth response into a Session.
func FromUser(u *model.JSONUserV1) *Session {
	return &Session{
		UserID:   u.UserID,
		Email:    u.Email,
		FullName: u.FullName,
		IsAdmin:  u.IsAdmin,
	}
}

// User converts the Session back into its wire form.
func (s *Session) User() *model.JSONUserV1 {
	return &model.JSONUserV1{
		UserID:   s.UserID,
		Email:    s.Email,
		FullName: s.FullName,
		IsAdmin:  s.IsAdmin,
	}
}

// Valid reports whether the session carries an identity usable for requests.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != ""
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.Email, s.UserID)
}

// Store retains a single serialized Session under a fixed key.
type Store interface {
	// Get returns the stored session, or ErrNotExist.
	Get(ctx context.Context) (*Session, error)
	// Set replaces the stored session.
	Set(ctx context.Context, s *Session) error
	// Clear removes the stored session; clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Constructors maps session store type names to their constructor functions.
var Constructors = map[string]func(config.Session) (Store, error){
	config.FileStore:   NewFileStore,
	config.SQLiteStore: NewSQLStore,
	config.MemoryStore: NewMemStore,
}

// FromConfig creates an instance of the Store based on the provided config.Session.
func FromConfig(c config.Session) (Store, error) {
	if cf := Constructors[c.Store]; cf != nil {
		return cf(c)
	}
	return nil, fmt.Errorf("missing session store constructor for %q", c.Store)
}

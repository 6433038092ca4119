package localdb

import (
	"context"
	"errors"

	"github.com/msomdec/lifelink/internal/domain"
)

// SessionStore keeps the active session and user of one browser.
type SessionStore struct {
	kv domain.KeyValueStore
}

// NewSessionStore creates a SessionStore over kv, usually a Prefixed view.
func NewSessionStore(kv domain.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv}
}

// Load returns the persisted session, or nil when signed out.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	var session *domain.Session
	if err := readJSON(ctx, s.kv, sessionKey, &session); err != nil {
		return nil, err
	}
	if session != nil && session.User.ID == "" {
		return nil, nil
	}
	return session, nil
}

// LoadUser returns the persisted session user, or nil when signed out.
func (s *SessionStore) LoadUser(ctx context.Context) (*domain.SessionUser, error) {
	var user *domain.SessionUser
	if err := readJSON(ctx, s.kv, userKey, &user); err != nil {
		return nil, err
	}
	if user != nil && user.ID == "" {
		return nil, nil
	}
	return user, nil
}

// Save persists session and its user.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	if err := writeJSON(ctx, s.kv, sessionKey, session); err != nil {
		return err
	}
	return writeJSON(ctx, s.kv, userKey, session.User)
}

// Clear removes the session and user keys.
func (s *SessionStore) Clear(ctx context.Context) error {
	return errors.Join(
		s.kv.Delete(ctx, sessionKey),
		s.kv.Delete(ctx, userKey),
	)
}

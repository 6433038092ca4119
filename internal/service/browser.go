package service

import (
	"context"
	"fmt"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
)

// Browser is the auth scope of one client: its own session keys over the
// shared tables.
type Browser struct {
	ID      string
	Auth    *AuthService
	Session *SessionContext
}

// Close releases the session context subscription.
func (b *Browser) Close() {
	b.Session.Close()
}

// BrowserFactory opens Browser scopes over a shared store.
type BrowserFactory struct {
	kv   domain.KeyValueStore
	db   *localdb.Client
	opts AuthOptions
}

// NewBrowserFactory creates a BrowserFactory. db must be built over kv.
func NewBrowserFactory(kv domain.KeyValueStore, db *localdb.Client, opts AuthOptions) *BrowserFactory {
	return &BrowserFactory{kv: kv, db: db, opts: opts}
}

// Open builds the scope for browserID and loads its session.
func (f *BrowserFactory) Open(ctx context.Context, browserID string) (*Browser, error) {
	if browserID == "" {
		return nil, fmt.Errorf("%w: browser id is required", domain.ErrInvalidInput)
	}
	sessions := localdb.NewSessionStore(localdb.Prefixed(f.kv, "browser:"+browserID+":"))
	auth := NewAuthService(f.db, sessions, f.opts)
	sc := NewSessionContext(auth, f.db)
	if err := sc.Load(ctx); err != nil {
		sc.Close()
		return nil, err
	}
	return &Browser{ID: browserID, Auth: auth, Session: sc}, nil
}

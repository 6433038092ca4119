package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
)

// SessionState is the resolved view of who is signed in.
type SessionState struct {
	User    *domain.SessionUser
	Profile *domain.Profile
	Role    domain.Role
	Loading bool
}

// SessionContext tracks the signed-in user of one browser together with
// its profile and role, re-resolving on every auth transition.
type SessionContext struct {
	auth *AuthService
	db   *localdb.Client
	sub  *Subscription

	mu    sync.RWMutex
	state SessionState
}

// NewSessionContext subscribes to auth. The state reports Loading until
// Load completes.
func NewSessionContext(auth *AuthService, db *localdb.Client) *SessionContext {
	sc := &SessionContext{
		auth:  auth,
		db:    db,
		state: SessionState{Loading: true},
	}
	sc.sub = auth.OnAuthStateChange(sc.onAuthEvent)
	return sc
}

// Load performs the initial session check.
func (sc *SessionContext) Load(ctx context.Context) error {
	session, err := sc.auth.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	return sc.resolve(ctx, session)
}

// State returns a snapshot of the current state.
func (sc *SessionContext) State() SessionState {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.state
}

// Close stops listening for auth transitions.
func (sc *SessionContext) Close() {
	sc.sub.Unsubscribe()
}

func (sc *SessionContext) onAuthEvent(ctx context.Context, _ AuthEvent, session *domain.Session) {
	if err := sc.resolve(ctx, session); err != nil {
		slog.Error("resolve session", "error", err)
	}
}

// resolve reports Loading while the profile and role of session are
// fetched. A failed fetch keeps the previous state.
func (sc *SessionContext) resolve(ctx context.Context, session *domain.Session) error {
	if session == nil {
		sc.set(SessionState{})
		return nil
	}

	sc.mu.Lock()
	prev := sc.state
	sc.state.Loading = true
	sc.mu.Unlock()

	user := session.User
	profile, err := FetchProfile(ctx, sc.db, user.ID)
	if err == nil {
		var role domain.Role
		role, err = ResolveRole(ctx, sc.db, user.ID)
		if err == nil {
			sc.set(SessionState{User: &user, Profile: profile, Role: role})
			return nil
		}
	}
	prev.Loading = false
	sc.set(prev)
	return err
}

func (sc *SessionContext) set(state SessionState) {
	sc.mu.Lock()
	sc.state = state
	sc.mu.Unlock()
}

// ResolveRole returns the role assigned to userID, or domain.RoleNone.
func ResolveRole(ctx context.Context, db *localdb.Client, userID string) (domain.Role, error) {
	row, err := db.From(localdb.TableUserRoles).Select("role").Eq("user_id", userID).Single(ctx)
	if errors.Is(err, domain.ErrNoRows) {
		return domain.RoleNone, nil
	}
	if err != nil {
		return domain.RoleNone, fmt.Errorf("resolve role: %w", err)
	}
	var assignment domain.RoleAssignment
	if err := localdb.Decode(row, &assignment); err != nil {
		return domain.RoleNone, err
	}
	return assignment.Role, nil
}

// FetchProfile returns the profile of userID, or nil when it has none.
func FetchProfile(ctx context.Context, db *localdb.Client, userID string) (*domain.Profile, error) {
	row, err := db.From(localdb.TableProfiles).Select("*").Eq("id", userID).Single(ctx)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	var profile domain.Profile
	if err := localdb.Decode(row, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
	"github.com/msomdec/lifelink/internal/repository/sqlite"
	"github.com/msomdec/lifelink/internal/service"
)

// newTestStore opens a migrated SQLite store in a temp dir and a client
// whose clock advances one millisecond per reading.
func newTestStore(t *testing.T) (domain.KeyValueStore, *localdb.Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var tick atomic.Int64
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		return start.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	kv := db.KV()
	return kv, localdb.New(kv, localdb.WithClock(clock))
}

func newTestAuthService(t *testing.T, opts service.AuthOptions) (*service.AuthService, *localdb.Client) {
	t.Helper()
	kv, db := newTestStore(t)
	// Use cost 4 for fast tests.
	opts.BcryptCost = 4
	sessions := localdb.NewSessionStore(localdb.Prefixed(kv, "browser:test:"))
	return service.NewAuthService(db, sessions, opts), db
}

func TestAuthService_SignUp_CreatesProfileRoleAndSession(t *testing.T) {
	auth, db := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	user, err := auth.SignUp(ctx, "ana@example.com", "secret", service.SignUpAttributes{
		FullName: "Ana Diaz",
		Role:     domain.RoleSeeker,
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected user ID to be set")
	}

	session, err := auth.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session == nil || session.User.ID != user.ID {
		t.Fatalf("expected active session for %s, got %+v", user.ID, session)
	}

	profiles, err := db.From(localdb.TableProfiles).Eq("id", user.ID).Execute(ctx)
	if err != nil {
		t.Fatalf("select profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected exactly 1 profile, got %d", len(profiles))
	}
	if profiles[0]["full_name"] != "Ana Diaz" {
		t.Fatalf("expected full_name Ana Diaz, got %v", profiles[0]["full_name"])
	}

	roles, err := db.From(localdb.TableUserRoles).Eq("user_id", user.ID).Execute(ctx)
	if err != nil {
		t.Fatalf("select roles: %v", err)
	}
	if len(roles) != 1 || roles[0]["role"] != "seeker" {
		t.Fatalf("expected one seeker role, got %v", roles)
	}
}

func TestAuthService_SignUp_DefaultsNameAndSkipsRole(t *testing.T) {
	auth, db := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	user, err := auth.SignUp(ctx, "noname@example.com", "secret", service.SignUpAttributes{})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	profile, err := service.FetchProfile(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.FullName != "User" {
		t.Fatalf("expected default name User, got %q", profile.FullName)
	}
	if profile.Phone != nil {
		t.Fatalf("expected nil phone, got %q", *profile.Phone)
	}

	role, err := service.ResolveRole(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("ResolveRole: %v", err)
	}
	if role != domain.RoleNone {
		t.Fatalf("expected no role, got %q", role)
	}
}

func TestAuthService_SignUp_MissingFields(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})

	_, err := auth.SignUp(context.Background(), "", "secret", service.SignUpAttributes{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_SignUp_InvalidRole(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})

	_, err := auth.SignUp(context.Background(), "x@example.com", "secret", service.SignUpAttributes{Role: "nurse"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_SignIn_UnknownEmailCreatesUser(t *testing.T) {
	auth, db := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	user, err := auth.SignInWithPassword(ctx, "walkin@example.com", "anything")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	stored, err := db.Users().Get(ctx, "walkin@example.com")
	if err != nil {
		t.Fatalf("Users.Get: %v", err)
	}
	if stored.ID != user.ID {
		t.Fatalf("expected stored user %s, got %s", user.ID, stored.ID)
	}

	profile, err := service.FetchProfile(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile == nil || profile.FullName != "walkin" {
		t.Fatalf("expected profile named walkin, got %+v", profile)
	}

	sessionUser, err := auth.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if sessionUser == nil || sessionUser.Email != "walkin@example.com" {
		t.Fatalf("expected session user walkin@example.com, got %+v", sessionUser)
	}
}

func TestAuthService_SignIn_PermissiveIgnoresPassword(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	signedUp, err := auth.SignUp(ctx, "p@example.com", "right", service.SignUpAttributes{FullName: "P"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	user, err := auth.SignInWithPassword(ctx, "p@example.com", "wrong")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if user.ID != signedUp.ID {
		t.Fatalf("expected existing user %s, got %s", signedUp.ID, user.ID)
	}
}

func TestAuthService_Strict(t *testing.T) {
	auth, db := newTestAuthService(t, service.AuthOptions{Strict: true})
	ctx := context.Background()

	if _, err := auth.SignUp(ctx, "s@example.com", "password123", service.SignUpAttributes{}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	stored, err := db.Users().Get(ctx, "s@example.com")
	if err != nil {
		t.Fatalf("Users.Get: %v", err)
	}
	if stored.Password == "password123" {
		t.Fatal("expected password to be hashed in strict mode")
	}

	if _, err := auth.SignUp(ctx, "s@example.com", "other", service.SignUpAttributes{}); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := auth.SignInWithPassword(ctx, "s@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, err := auth.SignInWithPassword(ctx, "nobody@example.com", "password123"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}
	if _, err := auth.SignInWithPassword(ctx, "s@example.com", "password123"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
}

func TestAuthService_SignOut_ClearsSession(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	if _, err := auth.SignInWithPassword(ctx, "out@example.com", "x"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	session, err := auth.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session, got %+v", session)
	}
	user, err := auth.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user != nil {
		t.Fatalf("expected no user, got %+v", user)
	}
}

func TestAuthService_UnsubscribedListenerStopsReceiving(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	var signedOut int
	sub := auth.OnAuthStateChange(func(_ context.Context, event service.AuthEvent, _ *domain.Session) {
		if event == service.EventSignedOut {
			signedOut++
		}
	})

	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("first SignOut: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("second SignOut: %v", err)
	}

	if signedOut != 1 {
		t.Fatalf("expected exactly 1 SIGNED_OUT event, got %d", signedOut)
	}
}

func TestAuthService_ListenersRunInOrderDespitePanics(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	var calls []string
	auth.OnAuthStateChange(func(context.Context, service.AuthEvent, *domain.Session) {
		calls = append(calls, "first")
	})
	auth.OnAuthStateChange(func(context.Context, service.AuthEvent, *domain.Session) {
		calls = append(calls, "second")
		panic("listener failure")
	})
	auth.OnAuthStateChange(func(_ context.Context, event service.AuthEvent, session *domain.Session) {
		if event != service.EventSignedIn || session == nil {
			t.Errorf("expected SIGNED_IN with a session, got %s %+v", event, session)
		}
		calls = append(calls, "third")
	})

	if _, err := auth.SignInWithPassword(ctx, "order@example.com", "x"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, calls)
		}
	}
}

func TestAuthService_ListenerAddedDuringNotifyWaitsForNextEvent(t *testing.T) {
	auth, _ := newTestAuthService(t, service.AuthOptions{})
	ctx := context.Background()

	var late int
	auth.OnAuthStateChange(func(context.Context, service.AuthEvent, *domain.Session) {
		auth.OnAuthStateChange(func(context.Context, service.AuthEvent, *domain.Session) {
			late++
		})
	})

	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if late != 0 {
		t.Fatalf("expected listener added during delivery to be skipped, got %d calls", late)
	}
}

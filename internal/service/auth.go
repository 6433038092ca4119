package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
	"golang.org/x/crypto/bcrypt"
)

// AuthOptions configures credential handling.
//
// In permissive mode (Strict false) passwords are stored as given, sign-up
// overwrites an existing email and sign-in never checks the password,
// creating a user for unknown emails. Strict mode hashes passwords with
// bcrypt and rejects duplicates, unknown emails and wrong passwords.
type AuthOptions struct {
	Strict     bool
	BcryptCost int
}

// SignUpAttributes are the optional details supplied at registration.
type SignUpAttributes struct {
	FullName string
	Role     domain.Role
}

// AuthService emulates an auth backend for a single browser: one identity
// store shared by all browsers and one session scoped to this browser.
type AuthService struct {
	db        *localdb.Client
	sessions  *localdb.SessionStore
	listeners AuthListeners
	opts      AuthOptions
}

// NewAuthService creates a new AuthService.
func NewAuthService(db *localdb.Client, sessions *localdb.SessionStore, opts AuthOptions) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{db: db, sessions: sessions, opts: opts}
}

// SignUp creates a user, its profile and an active session, optionally
// assigns a role, and emits SIGNED_IN.
func (s *AuthService) SignUp(ctx context.Context, email, password string, attrs SignUpAttributes) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if attrs.Role != domain.RoleNone && !attrs.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, attrs.Role)
	}

	stored, err := s.storedPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:       s.db.GenerateID(),
		Email:    email,
		Password: stored,
		FullName: attrs.FullName,
	}

	if s.opts.Strict {
		ok, err := s.db.Users().PutIfAbsent(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("store user: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateEmail
		}
	} else if err := s.db.Users().Put(ctx, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	profileName := attrs.FullName
	if profileName == "" {
		profileName = "User"
	}
	if err := s.createProfile(ctx, user, profileName); err != nil {
		return nil, err
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if attrs.Role != domain.RoleNone {
		if _, err := s.db.From(localdb.TableUserRoles).Insert(ctx, localdb.Row{
			"user_id": user.ID,
			"role":    string(attrs.Role),
		}); err != nil {
			return nil, fmt.Errorf("assign role: %w", err)
		}
	}

	s.listeners.Notify(ctx, EventSignedIn, session)
	return user, nil
}

// SignInWithPassword starts a session for email and emits SIGNED_IN.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	user, err := s.db.Users().Get(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if s.opts.Strict {
			return nil, domain.ErrUnauthorized
		}
		if user, err = s.createImplicitUser(ctx, email, password); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	case s.opts.Strict:
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
			return nil, domain.ErrUnauthorized
		}
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.listeners.Notify(ctx, EventSignedIn, session)
	return user, nil
}

// SignOut clears the session and emits SIGNED_OUT.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.listeners.Notify(ctx, EventSignedOut, nil)
	return nil
}

// GetSession returns the active session, or nil when signed out.
func (s *AuthService) GetSession(ctx context.Context) (*domain.Session, error) {
	return s.sessions.Load(ctx)
}

// GetUser returns the signed-in user, or nil when signed out.
func (s *AuthService) GetUser(ctx context.Context) (*domain.SessionUser, error) {
	return s.sessions.LoadUser(ctx)
}

// OnAuthStateChange registers listener for every later auth transition.
func (s *AuthService) OnAuthStateChange(listener AuthListener) *Subscription {
	return s.listeners.Add(listener)
}

func (s *AuthService) storedPassword(password string) (string, error) {
	if !s.opts.Strict {
		return password, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) createImplicitUser(ctx context.Context, email, password string) (*domain.User, error) {
	user := &domain.User{ID: s.db.GenerateID(), Email: email, Password: password}
	if err := s.db.Users().Put(ctx, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	_, err := s.db.From(localdb.TableProfiles).Eq("id", user.ID).Single(ctx)
	if errors.Is(err, domain.ErrNoRows) {
		localPart, _, _ := strings.Cut(email, "@")
		err = s.createProfile(ctx, user, localPart)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) createProfile(ctx context.Context, user *domain.User, fullName string) error {
	_, err := s.db.From(localdb.TableProfiles).Insert(ctx, localdb.Row{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": fullName,
		"phone":     nil,
	})
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	session := &domain.Session{User: domain.SessionUser{ID: user.ID, Email: user.Email}}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

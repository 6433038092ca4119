package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/msomdec/lifelink/internal/domain"
)

// AuthEvent names an auth state transition.
type AuthEvent string

const (
	EventSignedIn  AuthEvent = "SIGNED_IN"
	EventSignedOut AuthEvent = "SIGNED_OUT"
)

// AuthListener receives auth transitions. session is nil on sign-out.
type AuthListener func(ctx context.Context, event AuthEvent, session *domain.Session)

type listenerEntry struct {
	id uint64
	fn AuthListener
}

// AuthListeners is an ordered registry of auth listeners. Delivery is
// synchronous, in registration order, over a snapshot of the registry taken
// when Notify starts.
type AuthListeners struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
}

// Subscription removes a listener. Unsubscribe may be called any number of
// times.
type Subscription struct {
	once   sync.Once
	remove func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

// Add registers fn and returns its subscription.
func (l *AuthListeners) Add(fn AuthListener) *Subscription {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listenerEntry{id: id, fn: fn})
	l.mu.Unlock()

	return &Subscription{remove: func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}}
}

// Len returns the number of registered listeners.
func (l *AuthListeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Notify delivers event to every listener. A panicking listener is logged
// and skipped.
func (l *AuthListeners) Notify(ctx context.Context, event AuthEvent, session *domain.Session) {
	l.mu.Lock()
	snapshot := make([]listenerEntry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, e := range snapshot {
		deliver(ctx, e.fn, event, session)
	}
}

func deliver(ctx context.Context, fn AuthListener, event AuthEvent, session *domain.Session) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("auth listener panicked", "event", event, "panic", r)
		}
	}()
	fn(ctx, event, session)
}

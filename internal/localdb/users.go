package localdb

import (
	"context"
	"slices"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
)

// UsersIndex is the email-keyed map of identity records.
type UsersIndex struct {
	client *Client
}

// Users returns the users index of the client's store.
func (c *Client) Users() *UsersIndex {
	return &UsersIndex{client: c}
}

func (u *UsersIndex) read(ctx context.Context) (map[string]domain.User, error) {
	users := map[string]domain.User{}
	if err := readJSON(ctx, u.client.kv, usersKey, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]domain.User{}
	}
	return users, nil
}

// Get returns the user registered under email, or domain.ErrNotFound.
func (u *UsersIndex) Get(ctx context.Context, email string) (*domain.User, error) {
	u.client.mu.Lock()
	defer u.client.mu.Unlock()

	users, err := u.read(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

// Put stores user under its email, replacing any previous entry.
func (u *UsersIndex) Put(ctx context.Context, user *domain.User) error {
	u.client.mu.Lock()
	defer u.client.mu.Unlock()

	users, err := u.read(ctx)
	if err != nil {
		return err
	}
	users[user.Email] = *user
	return writeJSON(ctx, u.client.kv, usersKey, users)
}

// PutIfAbsent stores user unless the email is already taken. It reports
// whether the user was stored.
func (u *UsersIndex) PutIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	u.client.mu.Lock()
	defer u.client.mu.Unlock()

	users, err := u.read(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := users[user.Email]; ok {
		return false, nil
	}
	users[user.Email] = *user
	return true, writeJSON(ctx, u.client.kv, usersKey, users)
}

// List returns every user ordered by email.
func (u *UsersIndex) List(ctx context.Context) ([]domain.User, error) {
	u.client.mu.Lock()
	defer u.client.mu.Unlock()

	users, err := u.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, user := range users {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b domain.User) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

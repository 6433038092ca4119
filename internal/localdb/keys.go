package localdb

import (
	"context"

	"github.com/msomdec/lifelink/internal/domain"
)

const keyPrefix = "lifelink_"

const (
	usersKey    = keyPrefix + "users"
	rolesKey    = keyPrefix + "roles"
	profilesKey = keyPrefix + "profiles"
	sessionKey  = keyPrefix + "session"
	userKey     = keyPrefix + "user"
)

func collectionKey(t Table) string {
	return keyPrefix + t.String()
}

type prefixedStore struct {
	kv     domain.KeyValueStore
	prefix string
}

// Prefixed returns a view of kv where every key is namespaced with prefix.
func Prefixed(kv domain.KeyValueStore, prefix string) domain.KeyValueStore {
	return &prefixedStore{kv: kv, prefix: prefix}
}

func (p *prefixedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixedStore) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *prefixedStore) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}

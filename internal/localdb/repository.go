package localdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
)

// stamps carries the values an insert or update may need to synthesize.
type stamps struct {
	now   string
	newID func() string
}

// repository is the storage strategy behind one table.
type repository interface {
	load(ctx context.Context) ([]Row, error)
	insert(ctx context.Context, rows []Row, st stamps) ([]Row, error)
	update(ctx context.Context, match func(Row) bool, patch Row, st stamps) (int, error)
	remove(ctx context.Context, match func(Row) bool) (int, error)
}

func (c *Client) repositoryFor(t Table) (repository, error) {
	switch t {
	case TableProfiles:
		return &profileRepository{kv: c.kv}, nil
	case TableUserRoles:
		return &roleRepository{kv: c.kv}, nil
	case TableBloodRequests, TableNotifications, TableDonations:
		return &collectionRepository{kv: c.kv, key: collectionKey(t)}, nil
	}
	return nil, fmt.Errorf("%w: unknown table %s", domain.ErrInvalidInput, t)
}

// readJSON decodes the value under key into dst. Missing keys leave dst
// untouched; corrupt values are logged and treated as missing.
func readJSON(ctx context.Context, kv domain.KeyValueStore, key string, dst any) error {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("discarding corrupt stored value", "key", key, "error", err)
	}
	return nil
}

func writeJSON(ctx context.Context, kv domain.KeyValueStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// applyPatch merges patch into row and refreshes updated_at without ever
// moving it backwards.
func applyPatch(row, patch Row, now string) Row {
	merged := row.clone()
	for k, v := range patch {
		merged[k] = v
	}
	if prev := row.str("updated_at"); prev > now {
		merged["updated_at"] = prev
	} else {
		merged["updated_at"] = now
	}
	return merged
}

func stampTimes(row Row, now string) {
	if row.str("created_at") == "" {
		row["created_at"] = now
	}
	if row.str("updated_at") == "" {
		row["updated_at"] = now
	}
}

// profileRepository stores profiles in a map keyed by profile id.
type profileRepository struct {
	kv domain.KeyValueStore
}

func (r *profileRepository) read(ctx context.Context) (map[string]Row, error) {
	profiles := map[string]Row{}
	if err := readJSON(ctx, r.kv, profilesKey, &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = map[string]Row{}
	}
	return profiles, nil
}

func (r *profileRepository) load(ctx context.Context) ([]Row, error) {
	profiles, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	return sortedValues(profiles), nil
}

func (r *profileRepository) insert(ctx context.Context, rows []Row, st stamps) ([]Row, error) {
	profiles, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		id := row.str("id")
		if id == "" {
			return nil, fmt.Errorf("%w: profile rows require an id", domain.ErrInvalidInput)
		}
		stored := row.clone()
		stampTimes(stored, st.now)
		profiles[id] = stored
		out = append(out, stored)
	}
	return out, writeJSON(ctx, r.kv, profilesKey, profiles)
}

func (r *profileRepository) update(ctx context.Context, match func(Row) bool, patch Row, st stamps) (int, error) {
	profiles, err := r.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, row := range profiles {
		if match(row) {
			profiles[id] = applyPatch(row, patch, st.now)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, profilesKey, profiles)
}

func (r *profileRepository) remove(ctx context.Context, match func(Row) bool) (int, error) {
	profiles, err := r.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, row := range profiles {
		if match(row) {
			delete(profiles, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, profilesKey, profiles)
}

// roleRepository stores one role per user id.
type roleRepository struct {
	kv domain.KeyValueStore
}

func (r *roleRepository) read(ctx context.Context) (map[string]string, error) {
	roles := map[string]string{}
	if err := readJSON(ctx, r.kv, rolesKey, &roles); err != nil {
		return nil, err
	}
	if roles == nil {
		roles = map[string]string{}
	}
	return roles, nil
}

func roleRow(userID, role string) Row {
	return Row{"id": userID, "user_id": userID, "role": role}
}

func (r *roleRepository) load(ctx context.Context) ([]Row, error) {
	roles, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, roleRow(id, roles[id]))
	}
	return rows, nil
}

func validRoleValue(v any) (string, error) {
	s, _ := v.(string)
	if !domain.Role(s).Valid() {
		return "", fmt.Errorf("%w: invalid role %v", domain.ErrInvalidInput, v)
	}
	return s, nil
}

func (r *roleRepository) insert(ctx context.Context, rows []Row, _ stamps) ([]Row, error) {
	roles, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		userID := row.str("user_id")
		if userID == "" {
			return nil, fmt.Errorf("%w: role rows require a user_id", domain.ErrInvalidInput)
		}
		role, err := validRoleValue(row["role"])
		if err != nil {
			return nil, err
		}
		roles[userID] = role
		out = append(out, roleRow(userID, role))
	}
	return out, writeJSON(ctx, r.kv, rolesKey, roles)
}

func (r *roleRepository) update(ctx context.Context, match func(Row) bool, patch Row, _ stamps) (int, error) {
	for k := range patch {
		if k != "role" {
			return 0, fmt.Errorf("%w: only role can be updated on %s", domain.ErrInvalidInput, TableUserRoles)
		}
	}
	role, err := validRoleValue(patch["role"])
	if err != nil {
		return 0, err
	}
	roles, err := r.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for userID, current := range roles {
		if match(roleRow(userID, current)) {
			roles[userID] = role
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, rolesKey, roles)
}

func (r *roleRepository) remove(ctx context.Context, match func(Row) bool) (int, error) {
	roles, err := r.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for userID, role := range roles {
		if match(roleRow(userID, role)) {
			delete(roles, userID)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, rolesKey, roles)
}

// collectionRepository stores rows as an ordered list.
type collectionRepository struct {
	kv  domain.KeyValueStore
	key string
}

func (r *collectionRepository) load(ctx context.Context) ([]Row, error) {
	var rows []Row
	if err := readJSON(ctx, r.kv, r.key, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *collectionRepository) insert(ctx context.Context, rows []Row, st stamps) ([]Row, error) {
	existing, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		stored := row.clone()
		if stored.str("id") == "" {
			stored["id"] = st.newID()
		}
		stampTimes(stored, st.now)
		out = append(out, stored)
	}
	return out, writeJSON(ctx, r.kv, r.key, append(existing, out...))
}

func (r *collectionRepository) update(ctx context.Context, match func(Row) bool, patch Row, st stamps) (int, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, row := range rows {
		if match(row) {
			rows[i] = applyPatch(row, patch, st.now)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, r.key, rows)
}

func (r *collectionRepository) remove(ctx context.Context, match func(Row) bool) (int, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := slices.DeleteFunc(slices.Clone(rows), match)
	n := len(rows) - len(kept)
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(ctx, r.kv, r.key, kept)
}

// sortedValues returns map values ordered by key. Keyed ids start with a
// millisecond timestamp, so this is creation order for synthesized ids.
func sortedValues(m map[string]Row) []Row {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	out := make([]Row, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

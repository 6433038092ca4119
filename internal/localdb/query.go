package localdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/lifelink/internal/domain"
)

// Client runs queries against tables stored in a key-value store. Terminal
// calls are serialized so a read-modify-write of one table is atomic within
// the process.
type Client struct {
	kv    domain.KeyValueStore
	mu    sync.Mutex
	now   func() time.Time
	newID func(time.Time) string
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithIDGenerator overrides id synthesis.
func WithIDGenerator(fn func(time.Time) string) Option {
	return func(c *Client) { c.newID = fn }
}

// New creates a Client over kv.
func New(kv domain.KeyValueStore, opts ...Option) *Client {
	c := &Client{kv: kv, now: time.Now, newID: NewID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewID returns a time-based id with a random suffix, e.g.
// local_1760486400000_3f2a9c1b7d4e.
func NewID(t time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("local_%d_%s", t.UnixMilli(), random[:12])
}

// Now returns the client's current time.
func (c *Client) Now() time.Time {
	return c.now()
}

// GenerateID synthesizes an id using the client's clock and generator.
func (c *Client) GenerateID() string {
	return c.newID(c.now())
}

func (c *Client) stamps() stamps {
	now := c.now()
	return stamps{
		now:   FormatTime(now),
		newID: func() string { return c.newID(now) },
	}
}

// From starts a query on table t.
func (c *Client) From(t Table) Query {
	return Query{client: c, table: t}
}

type filter struct {
	column string
	value  any
}

// OrderOptions configures Order. The zero value sorts ascending.
type OrderOptions struct {
	Descending bool
}

type ordering struct {
	column     string
	descending bool
}

// Query is an immutable query description. Every builder method returns a
// new Query and leaves the receiver unchanged.
type Query struct {
	client  *Client
	table   Table
	columns []string
	filters []filter
	order   *ordering
	limit   int
}

// Select records the requested columns. Rows are returned whole.
func (q Query) Select(columns ...string) Query {
	q.columns = append(slices.Clip(q.columns), columns...)
	return q
}

// Eq adds an equality predicate. Predicates are combined with AND.
func (q Query) Eq(column string, value any) Query {
	q.filters = append(slices.Clip(q.filters), filter{column: column, value: value})
	return q
}

// Order sets the single sort key, replacing any previous one.
func (q Query) Order(column string, opts OrderOptions) Query {
	q.order = &ordering{column: column, descending: opts.Descending}
	return q
}

// Limit caps the number of returned rows. n <= 0 means no limit.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// Table returns the table the query targets.
func (q Query) Table() Table {
	return q.table
}

// Columns returns the columns passed to Select.
func (q Query) Columns() []string {
	return slices.Clone(q.columns)
}

func (q Query) matcher() (func(Row) bool, error) {
	normalized := make([]filter, len(q.filters))
	for i, f := range q.filters {
		v, err := normalizeValue(f.value)
		if err != nil {
			return nil, err
		}
		normalized[i] = filter{column: f.column, value: v}
	}
	return func(row Row) bool {
		for _, f := range normalized {
			if !valuesEqual(row[f.column], f.value) {
				return false
			}
		}
		return true
	}, nil
}

func (q Query) repository() (repository, error) {
	if q.client == nil {
		return nil, fmt.Errorf("%w: query has no client", domain.ErrInvalidInput)
	}
	return q.client.repositoryFor(q.table)
}

// Execute runs the select pipeline: load, filter, order, limit.
func (q Query) Execute(ctx context.Context) ([]Row, error) {
	repo, err := q.repository()
	if err != nil {
		return nil, err
	}
	match, err := q.matcher()
	if err != nil {
		return nil, err
	}

	q.client.mu.Lock()
	rows, err := repo.load(ctx)
	q.client.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.table, err)
	}

	rows = slices.DeleteFunc(rows, func(r Row) bool { return !match(r) })

	if q.order != nil {
		col, desc := q.order.column, q.order.descending
		slices.SortStableFunc(rows, func(a, b Row) int {
			c := compareValues(a[col], b[col])
			if desc {
				return -c
			}
			return c
		})
	}

	if q.limit > 0 && len(rows) > q.limit {
		rows = rows[:q.limit]
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// Single returns the first row of Execute, or domain.ErrNoRows.
func (q Query) Single(ctx context.Context) (Row, error) {
	rows, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNoRows
	}
	return rows[0], nil
}

// Insert stores rows, synthesizing id and timestamps where the table needs
// them, and returns the stored rows.
func (q Query) Insert(ctx context.Context, rows ...Row) ([]Row, error) {
	repo, err := q.repository()
	if err != nil {
		return nil, err
	}
	normalized := make([]Row, len(rows))
	for i, r := range rows {
		if normalized[i], err = Encode(r); err != nil {
			return nil, err
		}
	}

	q.client.mu.Lock()
	defer q.client.mu.Unlock()
	stored, err := repo.insert(ctx, normalized, q.client.stamps())
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", q.table, err)
	}
	return stored, nil
}

// Upsert behaves exactly like Insert: existing rows are not merged.
func (q Query) Upsert(ctx context.Context, rows ...Row) ([]Row, error) {
	return q.Insert(ctx, rows...)
}

// Update merges patch into every row matching the filters and returns the
// number of rows changed.
func (q Query) Update(ctx context.Context, patch Row) (int, error) {
	repo, err := q.repository()
	if err != nil {
		return 0, err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("%w: update on %s requires a filter", domain.ErrInvalidInput, q.table)
	}
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("%w: id is immutable", domain.ErrInvalidInput)
	}
	normalized, err := Encode(patch)
	if err != nil {
		return 0, err
	}
	match, err := q.matcher()
	if err != nil {
		return 0, err
	}

	q.client.mu.Lock()
	defer q.client.mu.Unlock()
	n, err := repo.update(ctx, match, normalized, q.client.stamps())
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", q.table, err)
	}
	return n, nil
}

// Delete removes every row matching the filters and returns how many were
// removed.
func (q Query) Delete(ctx context.Context) (int, error) {
	repo, err := q.repository()
	if err != nil {
		return 0, err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("%w: delete on %s requires a filter", domain.ErrInvalidInput, q.table)
	}
	match, err := q.matcher()
	if err != nil {
		return 0, err
	}

	q.client.mu.Lock()
	defer q.client.mu.Unlock()
	n, err := repo.remove(ctx, match)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", q.table, err)
	}
	return n, nil
}

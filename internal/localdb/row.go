package localdb

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"
)

// Row is a single record. Values follow JSON decoding rules: numbers are
// float64, objects are map[string]any and null is nil.
type Row map[string]any

// TimestampLayout is fixed width so that lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimestampLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Encode converts a struct (or map) into a Row through its JSON form.
func Encode(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return row, nil
}

// Decode fills dst from row through its JSON form.
func Decode(row Row, dst any) error {
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// DecodeAll decodes every row into a new slice of T.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := Decode(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

func (r Row) clone() Row {
	return maps.Clone(r)
}

func (r Row) str(col string) string {
	s, _ := r[col].(string)
	return s
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers numerically and strings lexically. Any other
// combination compares equal so that a stable sort keeps insertion order.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	return 0
}

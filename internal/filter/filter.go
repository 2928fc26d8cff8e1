// Package filter evaluates compiled queries against records held in
// process. AND binds tighter than OR; groups evaluate first.
package filter

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/query"
)

// Lookup reads a property of one record.
type Lookup func(key string) (any, bool)

// Match reports whether the record behind get satisfies tokens. An empty
// token list matches every record.
func Match(tokens []query.Token, get Lookup) (bool, error) {
	if len(tokens) == 0 {
		return true, nil
	}
	triplets, err := query.Threeitize(tokens)
	if err != nil {
		return false, fmt.Errorf("%w: %w", query.ErrMalformedQuery, err)
	}

	current, err := matchOne(tokens[0], get)
	if err != nil {
		return false, err
	}
	result := false
	for _, t := range triplets {
		right, err := matchOne(t[2], get)
		if err != nil {
			return false, err
		}
		switch t[1] {
		case query.And:
			current = current && right
		case query.Or:
			result = result || current
			current = right
		default:
			return false, fmt.Errorf("%w: unexpected link %v", query.ErrMalformedQuery, t[1])
		}
	}
	return result || current, nil
}

func matchOne(t query.Token, get Lookup) (bool, error) {
	switch m := t.(type) {
	case query.Group:
		return Match(m, get)
	case query.PropertyMatch:
		v, _ := get(m.Key)
		return matchProperty(m, v), nil
	case query.DatesBefore:
		v, _ := get(m.Key)
		return matchDate(v, m.Date, m.ValueType, m.Inclusive, -1), nil
	case query.DatesAfter:
		v, _ := get(m.Key)
		return matchDate(v, m.Date, m.ValueType, m.Inclusive, 1), nil
	}
	return false, fmt.Errorf("%w: unexpected token %T", query.ErrMalformedQuery, t)
}

func matchProperty(m query.PropertyMatch, v any) bool {
	if items, ok := value.Slice(v); ok && m.ValueType != query.Object {
		for _, item := range items {
			if matchProperty(m, item) {
				return true
			}
		}
		return false
	}

	switch m.ValueType {
	case query.Number:
		a, aok := value.Float(v)
		b, bok := value.Float(m.Value)
		if !aok || !bok {
			return false
		}
		return compareSymbol(cmpFloat(a, b), m.Symbol)
	case query.Date, query.Datetime:
		a, aok := value.Time(v)
		b, bok := value.Time(m.Value)
		if !aok || !bok {
			return false
		}
		if m.ValueType == query.Date {
			a, b = day(a), day(b)
		}
		return compareSymbol(a.Compare(b), m.Symbol)
	case query.Boolean, query.Object:
		return reflect.DeepEqual(v, m.Value)
	}
	return matchText(m, v)
}

func matchText(m query.PropertyMatch, v any) bool {
	if v == nil {
		return m.Value == nil
	}
	s, want := fmt.Sprint(v), fmt.Sprint(m.Value)
	if !m.CaseSensitive {
		s, want = strings.ToLower(s), strings.ToLower(want)
	}
	switch {
	case m.StartsWith && m.EndsWith:
		return strings.HasPrefix(s, want) && strings.HasSuffix(s, want)
	case m.StartsWith:
		return strings.HasPrefix(s, want)
	case m.EndsWith:
		return strings.HasSuffix(s, want)
	}
	return s == want
}

func matchDate(v any, bound time.Time, vt query.ValueType, inclusive bool, want int) bool {
	t, ok := value.Time(v)
	if !ok {
		return false
	}
	if vt == query.Date {
		t, bound = day(t), day(bound)
	}
	c := t.Compare(bound)
	return c == want || (inclusive && c == 0)
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareSymbol(c int, s query.Symbol) bool {
	switch s {
	case query.Lt:
		return c < 0
	case query.Lte:
		return c <= 0
	case query.Gt:
		return c > 0
	case query.Gte:
		return c >= 0
	}
	return c == 0
}

// Compare orders two property values: nil first, then numbers, dates,
// booleans and finally text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := value.Float(a); ok {
		if bf, ok := value.Float(b); ok {
			return cmpFloat(af, bf)
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Sort orders items in place by the property named in s. A nil s leaves
// the order unchanged.
func Sort[T any](items []T, s *query.Sort, get func(item T, key string) any) {
	if s == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := Compare(get(items[i], s.Key), get(items[j], s.Key))
		if s.Order == query.Desc {
			return c > 0
		}
		return c < 0
	})
}

// Take returns at most *take items. A nil take returns items unchanged.
func Take[T any](items []T, take *int) []T {
	if take == nil || *take >= len(items) {
		return items
	}
	return items[:*take]
}

// Limit is the number of results one search page holds: *take when set,
// otherwise pageSize.
func Limit(take *int, pageSize int) int {
	if take != nil && *take > 0 {
		return *take
	}
	return pageSize
}

// Page returns at most limit items starting at offset, and the offset of
// the following page. next is -1 when nothing follows.
func Page[T any](items []T, offset, limit int) (page []T, next int) {
	if offset >= len(items) {
		return nil, -1
	}
	end := offset + limit
	if end >= len(items) {
		return items[offset:], -1
	}
	return items[offset:end], end
}

// Package value holds the dynamic-value helpers shared by properties,
// validators and the in-process query evaluator.
package value

import (
	"encoding/json"
	"reflect"
	"time"
)

// TimestampLayout is the canonical textual form of dates in records.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Float converts any Go numeric value to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsNumber reports whether v is a Go numeric value.
func IsNumber(v any) bool {
	_, ok := Float(v)
	return ok
}

// IsSlice reports whether v is a slice or array (but not a byte string).
func IsSlice(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// Slice converts any slice or array into []any. Nil yields nil, false.
func Slice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if !IsSlice(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Map converts any map with string keys into map[string]any.
func Map(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Falsy mirrors the loose notion of "no value": nil, false, zero numbers
// and the empty string.
func Falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	}
	if f, ok := Float(v); ok {
		return f == 0
	}
	return false
}

// Empty reports nil, "", and zero-length slices or maps.
func Empty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Time converts a time.Time, *time.Time or RFC3339 text into a time.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return ParseTime(t)
	}
	return time.Time{}, false
}

// ParseTime accepts RFC3339 (with or without fractional seconds) and
// plain dates.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders t in the canonical record form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

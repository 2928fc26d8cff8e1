// Package validators provides pure value checks used by model properties.
//
// Every check has the shape [Func]: it receives a resolved property value
// and returns nil when the value is acceptable, or a [*Failure] wrapping one
// of the sentinel errors below. [Message] yields the text recorded against
// the property.
package validators

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jacentio/arbor/internal/value"
)

// Func checks a single value.
type Func func(v any) error

// Sentinel errors wrapped by failed checks.
var (
	ErrRequired      = errors.New("arbor: value is required")
	ErrNotNumber     = errors.New("arbor: value is not a number")
	ErrNotInteger    = errors.New("arbor: value is not an integer")
	ErrNotString     = errors.New("arbor: value is not a string")
	ErrNotBoolean    = errors.New("arbor: value is not a boolean")
	ErrNotArray      = errors.New("arbor: value is not an array")
	ErrNotObject     = errors.New("arbor: value is not an object")
	ErrNotDate       = errors.New("arbor: value is not a date")
	ErrInvalidEmail  = errors.New("arbor: invalid email address")
	ErrBadFormat     = errors.New("arbor: value does not match the pattern")
	ErrTooShort      = errors.New("arbor: value is shorter than the minimum length")
	ErrTooLong       = errors.New("arbor: value is longer than the maximum length")
	ErrBelowMin      = errors.New("arbor: value is below the minimum")
	ErrAboveMax      = errors.New("arbor: value is above the maximum")
	ErrInvalidChoice = errors.New("arbor: value is not a valid choice")
)

// Failure is a failed check. Message is the user-facing text recorded
// against the property.
type Failure struct {
	Err     error
	Message string
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Message returns the user-facing text of a failed check. Errors that are
// not a [*Failure] yield their own text.
func Message(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

func fail(err error, format string, args ...any) error {
	return &Failure{Err: err, Message: fmt.Sprintf(format, args...)}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Required fails for nil, "" and empty collections. Booleans and numbers
// (including false and 0) always satisfy it.
func Required(v any) error {
	if _, ok := v.(bool); ok {
		return nil
	}
	if value.IsNumber(v) {
		return nil
	}
	if value.Empty(v) {
		return fail(ErrRequired, "A value is required")
	}
	return nil
}

// IsNumber requires a Go numeric value.
func IsNumber(v any) error {
	if !value.IsNumber(v) {
		return fail(ErrNotNumber, "Must be a number")
	}
	return nil
}

// IsInteger requires a numeric value without a fractional part.
func IsInteger(v any) error {
	f, ok := value.Float(v)
	if !ok || math.Trunc(f) != f {
		return fail(ErrNotInteger, "Must be an integer")
	}
	return nil
}

// IsString requires a string.
func IsString(v any) error {
	if _, ok := v.(string); !ok {
		return fail(ErrNotString, "Must be a string")
	}
	return nil
}

// IsBoolean requires a bool.
func IsBoolean(v any) error {
	if _, ok := v.(bool); !ok {
		return fail(ErrNotBoolean, "Must be a boolean")
	}
	return nil
}

// IsArray requires a slice or array.
func IsArray(v any) error {
	if !value.IsSlice(v) {
		return fail(ErrNotArray, "Value is not an array")
	}
	return nil
}

// IsObject requires a map with string keys.
func IsObject(v any) error {
	if _, ok := value.Map(v); !ok {
		return fail(ErrNotObject, "Must be an object")
	}
	return nil
}

// IsDate requires a time value or parseable date text.
func IsDate(v any) error {
	if _, ok := value.Time(v); !ok {
		return fail(ErrNotDate, "Value is not a date")
	}
	return nil
}

// Email requires a string shaped like an email address.
func Email(v any) error {
	s, ok := v.(string)
	if !ok || !emailPattern.MatchString(s) {
		return fail(ErrInvalidEmail, "An email address is invalid")
	}
	return nil
}

// Regex requires a string matching re.
func Regex(re *regexp.Regexp) Func {
	return func(v any) error {
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return fail(ErrBadFormat, "Format was invalid")
		}
		return nil
	}
}

// MinLength requires a string or collection of at least n elements.
func MinLength(n int) Func {
	return func(v any) error {
		l, ok := length(v)
		if !ok {
			return fail(ErrNotString, "Must be a string")
		}
		if l < n {
			return fail(fmt.Errorf("%w: %d", ErrTooShort, n), "The minimum length is %d", n)
		}
		return nil
	}
}

// MaxLength requires a string or collection of at most n elements.
func MaxLength(n int) Func {
	return func(v any) error {
		l, ok := length(v)
		if !ok {
			return fail(ErrNotString, "Must be a string")
		}
		if l > n {
			return fail(fmt.Errorf("%w: %d", ErrTooLong, n), "The maximum length is %d", n)
		}
		return nil
	}
}

// MinValue requires a number greater than or equal to min.
func MinValue(min float64) Func {
	return func(v any) error {
		f, ok := value.Float(v)
		if !ok {
			return fail(ErrNotNumber, "Must be a number")
		}
		if f < min {
			return fail(fmt.Errorf("%w: %v", ErrBelowMin, min), "The minimum is %v", min)
		}
		return nil
	}
}

// MaxValue requires a number less than or equal to max.
func MaxValue(max float64) Func {
	return func(v any) error {
		f, ok := value.Float(v)
		if !ok {
			return fail(ErrNotNumber, "Must be a number")
		}
		if f > max {
			return fail(fmt.Errorf("%w: %v", ErrAboveMax, max), "The maximum is %v", max)
		}
		return nil
	}
}

// Choices requires v to equal one of choices. When v is a slice every
// element must be a valid choice.
func Choices(choices []any) Func {
	return func(v any) error {
		if items, ok := value.Slice(v); ok {
			for _, item := range items {
				if !contains(choices, item) {
					return choiceError(choices, item)
				}
			}
			return nil
		}
		if !contains(choices, v) {
			return choiceError(choices, v)
		}
		return nil
	}
}

// ArrayOf applies check to every element of a slice.
func ArrayOf(check Func) Func {
	return func(v any) error {
		items, ok := value.Slice(v)
		if !ok {
			return fail(ErrNotArray, "Value is not an array")
		}
		for _, item := range items {
			if err := check(item); err != nil {
				return err
			}
		}
		return nil
	}
}

// All runs checks in order and returns every failure.
func All(v any, checks ...Func) []error {
	var errs []error
	for _, check := range checks {
		if err := check(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if items, ok := value.Slice(v); ok {
		return len(items), true
	}
	return 0, false
}

func contains(choices []any, v any) bool {
	for _, c := range choices {
		if reflect.DeepEqual(c, v) {
			return true
		}
		cf, cok := value.Float(c)
		vf, vok := value.Float(v)
		if cok && vok && cf == vf {
			return true
		}
	}
	return false
}

func choiceError(choices []any, v any) error {
	opts := make([]string, len(choices))
	for i, c := range choices {
		opts[i] = fmt.Sprint(c)
	}
	return fail(fmt.Errorf("%w: %v", ErrInvalidChoice, v), "%v is not a valid choice. Choices are: %s", v, strings.Join(opts, ","))
}

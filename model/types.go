package model

import (
	"context"

	"github.com/jacentio/arbor/validators"
)

// Data is the raw input of an instance and the plain output of ToObj.
type Data map[string]any

// Getter resolves a property value. Getters bound to an instance are
// memoized; calling one repeatedly yields the same value.
type Getter func(ctx context.Context) (any, error)

// Errors maps property names (and OverallKey) to validation messages.
// An empty map means the instance is valid.
type Errors map[string][]string

// OverallKey collects messages produced by model-level validators.
const OverallKey = "overall"

// ValidationContext carries flags that validators may consult.
type ValidationContext struct {
	// NoOrmValidation skips validators that require a storage round trip.
	NoOrmValidation bool

	// Extra is an open extension point for caller-defined flags.
	Extra map[string]any
}

// PropertyValidator inspects a resolved property value. It returns a
// non-empty message when the value is invalid. A non-nil error aborts
// validation and is returned unmodified by Instance.Validate.
type PropertyValidator func(ctx context.Context, v any, inst *Instance, vc ValidationContext) (string, error)

// ModelValidator inspects a whole instance and returns an optional message.
type ModelValidator func(ctx context.Context, inst *Instance, vc ValidationContext) (string, error)

// BoundValidator validates one property of one instance.
type BoundValidator func(ctx context.Context, inst *Instance, vc ValidationContext) ([]string, error)

// LazyLoad transforms the raw value of a property. It runs at most once
// per getter.
type LazyLoad func(ctx context.Context, raw any, data Data) (any, error)

// ValueSelector post-processes every resolved property value.
type ValueSelector func(v any) any

// Fetcher hydrates a referenced record. It returns Data, an *Instance, or
// nil when the record does not exist.
type Fetcher func(ctx context.Context, m *Model, id any) (any, error)

// InstanceMethod is a user method attached to every instance.
type InstanceMethod func(ctx context.Context, inst *Instance, args ...any) (any, error)

// ModelMethod is a user method attached to the model.
type ModelMethod func(ctx context.Context, m *Model, args ...any) (any, error)

// InstanceCreated runs after an instance is fully assembled.
type InstanceCreated func(inst *Instance)

// Serializable is implemented by values that ToObj should recurse into,
// such as instances and resolved references.
type Serializable interface {
	Serialize(ctx context.Context) (any, error)
}

// Check adapts a pure value check into a PropertyValidator.
func Check(fn validators.Func) PropertyValidator {
	return func(_ context.Context, v any, _ *Instance, _ ValidationContext) (string, error) {
		if err := fn(v); err != nil {
			return validators.Message(err), nil
		}
		return "", nil
	}
}

// callable returns a resolver for values that are themselves functions.
func callable(v any) (Getter, bool) {
	switch fn := v.(type) {
	case Getter:
		return fn, fn != nil
	case func(context.Context) (any, error):
		return fn, fn != nil
	case func() any:
		if fn == nil {
			return nil, false
		}
		return func(context.Context) (any, error) { return fn(), nil }, true
	case func() (any, error):
		if fn == nil {
			return nil, false
		}
		return func(context.Context) (any, error) { return fn() }, true
	}
	return nil, false
}

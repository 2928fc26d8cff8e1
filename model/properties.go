package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/validators"
)

// UniqueID generates a UUID the first time the value is read when no raw
// value was supplied. The generated id is stable for the life of the getter.
func UniqueID(cfg Config) (*Property, error) {
	if cfg.LazyLoad == nil {
		cfg.LazyLoad = func(ctx context.Context, raw any, _ Data) (any, error) {
			if fn, ok := callable(raw); ok {
				v, err := fn(ctx)
				if err != nil {
					return nil, err
				}
				raw = v
			}
			if raw == nil {
				return uuid.NewString(), nil
			}
			return raw, nil
		}
	}
	return NewProperty(TypeUniqueID, cfg)
}

// Date coerces date text into time.Time. With AutoNow an unset value is
// filled with the current time once.
func Date(cfg Config) (*Property, error) {
	autoNow := cfg.AutoNow
	if cfg.LazyLoad == nil {
		cfg.LazyLoad = func(ctx context.Context, raw any, _ Data) (any, error) {
			if fn, ok := callable(raw); ok {
				v, err := fn(ctx)
				if err != nil {
					return nil, err
				}
				raw = v
			}
			if raw == nil {
				if autoNow {
					return time.Now().UTC(), nil
				}
				return nil, nil
			}
			if t, ok := value.Time(raw); ok {
				return t, nil
			}
			return raw, nil
		}
	}
	return NewProperty(TypeDate, cfg, Check(validators.IsDate))
}

// Array coerces any slice into []any. A nil value becomes an empty array.
// Choices apply to every element.
func Array(cfg Config) (*Property, error) {
	if cfg.LazyLoad == nil {
		cfg.LazyLoad = func(ctx context.Context, raw any, _ Data) (any, error) {
			if fn, ok := callable(raw); ok {
				v, err := fn(ctx)
				if err != nil {
					return nil, err
				}
				raw = v
			}
			if raw == nil {
				return []any{}, nil
			}
			if items, ok := value.Slice(raw); ok {
				return items, nil
			}
			return raw, nil
		}
	}
	return NewProperty(TypeArray, cfg, Check(validators.IsArray))
}

// Object coerces any string-keyed map into Data.
func Object(cfg Config) (*Property, error) {
	if cfg.LazyLoad == nil {
		cfg.LazyLoad = func(_ context.Context, raw any, _ Data) (any, error) {
			if m, ok := value.Map(raw); ok {
				return Data(m), nil
			}
			return raw, nil
		}
	}
	return NewProperty(TypeObject, cfg, Check(validators.IsObject))
}

// Denormalized computes its value from the instance's raw data. The raw
// value for the property itself is ignored.
func Denormalized(typ Type, calculate func(ctx context.Context, data Data) (any, error), cfg Config) (*Property, error) {
	cfg.LazyLoad = func(ctx context.Context, _ any, data Data) (any, error) {
		return calculate(ctx, data)
	}
	return NewProperty(typ, cfg)
}

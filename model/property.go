package model

import (
	"context"

	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/validators"
)

// Type tags a property with the kind of value it holds.
type Type string

// Property types.
const (
	TypeText      Type = "Text"
	TypeInteger   Type = "Integer"
	TypeNumber    Type = "Number"
	TypeBoolean   Type = "Boolean"
	TypeEmail     Type = "Email"
	TypeArray     Type = "Array"
	TypeObject    Type = "Object"
	TypeDate      Type = "Date"
	TypeUniqueID  Type = "UniqueId"
	TypeReference Type = "Reference"
)

// Property describes one field of a model. It is immutable once built and
// shared by every instance of the model.
type Property struct {
	typ      Type
	cfg      Config
	selector ValueSelector
	checks   []PropertyValidator
	ref      *reference
}

// NewProperty builds a property from a type tag and configuration. The
// extra validators run after the ones synthesized from cfg.
func NewProperty(typ Type, cfg Config, extra ...PropertyValidator) (*Property, error) {
	if typ == "" {
		return nil, ErrMissingType
	}
	selector := cfg.ValueSelector
	if selector == nil {
		selector = func(v any) any { return v }
	}
	return &Property{
		typ:      typ,
		cfg:      cfg,
		selector: selector,
		checks:   append(shorthandChecks(cfg), extra...),
	}, nil
}

// MustProperty is like NewProperty but panics on error. It is meant for
// package-level model declarations.
func MustProperty(p *Property, err error) *Property {
	if err != nil {
		panic(err)
	}
	return p
}

func shorthandChecks(cfg Config) []PropertyValidator {
	var checks []PropertyValidator
	add := func(fn validators.Func) { checks = append(checks, Check(fn)) }

	if cfg.Required {
		add(validators.Required)
	}
	if cfg.IsInteger {
		add(validators.IsInteger)
	}
	if cfg.IsNumber {
		add(validators.IsNumber)
	}
	if cfg.IsString {
		add(validators.IsString)
	}
	if cfg.IsArray {
		add(validators.IsArray)
	}
	if cfg.IsBoolean {
		add(validators.IsBoolean)
	}
	if cfg.MaxLength != nil {
		add(validators.MaxLength(*cfg.MaxLength))
	}
	if cfg.MinLength != nil {
		add(validators.MinLength(*cfg.MinLength))
	}
	if cfg.MaxValue != nil {
		add(validators.MaxValue(*cfg.MaxValue))
	}
	if cfg.MinValue != nil {
		add(validators.MinValue(*cfg.MinValue))
	}
	if len(cfg.Choices) > 0 {
		add(validators.Choices(cfg.Choices))
	}
	return append(checks, cfg.Validators...)
}

// Type returns the property's type tag.
func (p *Property) Type() Type { return p.typ }

// Config returns the configuration the property was built with.
func (p *Property) Config() Config { return p.cfg }

// Choices returns the allowed values, if any.
func (p *Property) Choices() []any { return p.cfg.Choices }

// DefaultValue returns the configured default.
func (p *Property) DefaultValue() any { return p.cfg.DefaultValue }

// ConstantValue returns the configured constant.
func (p *Property) ConstantValue() any { return p.cfg.Value }

// Required reports whether a value must be present.
func (p *Property) Required() bool { return p.cfg.Required }

// CreateGetter binds raw input to a getter. data is the whole raw record
// and is handed to the lazy-load transform.
//
// Resolution order: constant value, default value (raw is nil), lazy-load
// transform (memoized), raw's own result when raw is callable, raw itself.
// The value selector post-processes the result in every case.
func (p *Property) CreateGetter(raw any, data Data) Getter {
	var lazy *onceValue
	if p.cfg.LazyLoad != nil {
		lazy = &onceValue{}
	}
	return func(ctx context.Context) (any, error) {
		v, err := p.resolve(ctx, raw, data, lazy)
		if err != nil {
			return nil, err
		}
		return p.selector(v), nil
	}
}

func (p *Property) resolve(ctx context.Context, raw any, data Data, lazy *onceValue) (any, error) {
	if p.cfg.Value != nil {
		return p.cfg.Value, nil
	}
	if raw == nil && p.cfg.DefaultValue != nil {
		return p.cfg.DefaultValue, nil
	}
	if lazy != nil {
		return lazy.get(ctx, func(ctx context.Context) (any, error) {
			return p.cfg.LazyLoad(ctx, raw, data)
		})
	}
	if fn, ok := callable(raw); ok {
		return fn(ctx)
	}
	return raw, nil
}

// Validator binds the property's validators to a getter. Falsy values of
// optional properties are not validated.
func (p *Property) Validator(get Getter) BoundValidator {
	return func(ctx context.Context, inst *Instance, vc ValidationContext) ([]string, error) {
		v, err := get(ctx)
		if err != nil {
			return nil, err
		}
		if !p.cfg.Required && value.Falsy(v) {
			return nil, nil
		}

		var msgs []string
		seen := make(map[string]bool)
		for _, check := range p.checks {
			msg, err := check(ctx, v, inst, vc)
			if err != nil {
				return nil, err
			}
			if msg == "" || seen[msg] {
				continue
			}
			seen[msg] = true
			msgs = append(msgs, msg)
		}
		return msgs, nil
	}
}

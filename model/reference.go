package model

import (
	"context"
	"fmt"

	"github.com/jacentio/arbor/internal/value"
)

// ModelRef resolves the target of a reference lazily, so that models may
// reference each other (or themselves) regardless of declaration order.
type ModelRef func() *Model

// RefTo returns a ModelRef for an already constructed model.
func RefTo(m *Model) ModelRef {
	return func() *Model { return m }
}

// Ref is the resolved value of a reference property whose target was
// hydrated, either because the raw value was an instance or because a
// fetcher returned the record. It serializes to the referenced id.
type Ref struct {
	id   any
	inst *Instance
}

// ID returns the referenced primary key.
func (r *Ref) ID() any { return r.id }

// Instance returns the hydrated instance.
func (r *Ref) Instance() *Instance { return r.inst }

// Serialize implements Serializable.
func (r *Ref) Serialize(context.Context) (any, error) { return r.id, nil }

type reference struct {
	target  ModelRef
	fetcher Fetcher
}

// Reference builds a property that points at an instance of another model.
// The raw value may be an id, a map holding the target's primary key, or
// an *Instance. Without a fetcher the getter yields the id; with one it
// yields a *Ref carrying the hydrated instance. A LazyLoad in cfg runs
// first and its result is resolved as the raw value.
func Reference(target ModelRef, cfg Config) (*Property, error) {
	if target == nil {
		return nil, ErrMissingReferencedModel
	}
	ref := &reference{target: target, fetcher: cfg.Fetcher}
	if pre := cfg.LazyLoad; pre != nil {
		cfg.LazyLoad = func(ctx context.Context, raw any, data Data) (any, error) {
			v, err := pre(ctx, raw, data)
			if err != nil {
				return nil, err
			}
			return ref.load(ctx, v, data)
		}
	} else {
		cfg.LazyLoad = ref.load
	}
	p, err := NewProperty(TypeReference, cfg)
	if err != nil {
		return nil, err
	}
	p.ref = ref
	return p, nil
}

// IsReference reports whether the property points at another model.
func (p *Property) IsReference() bool { return p.ref != nil }

// ReferencedModel returns the model a reference property points at.
func (p *Property) ReferencedModel() (*Model, error) {
	if p.ref == nil {
		return nil, ErrNotReference
	}
	return p.ref.model()
}

// ReferencedID extracts the referenced primary key from v.
func (p *Property) ReferencedID(ctx context.Context, v any) (any, error) {
	if p.ref == nil {
		return nil, ErrNotReference
	}
	return p.ref.id(ctx, v)
}

func (r *reference) model() (*Model, error) {
	m := r.target()
	if m == nil {
		return nil, ErrMissingReferencedModel
	}
	return m, nil
}

func (r *reference) id(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Ref:
		return t.id, nil
	case *Instance:
		return t.PrimaryKey(ctx)
	}
	if data, ok := value.Map(v); ok {
		m, err := r.model()
		if err != nil {
			return nil, err
		}
		return data[m.PrimaryKeyName()], nil
	}
	return v, nil
}

func (r *reference) load(ctx context.Context, raw any, _ Data) (any, error) {
	if fn, ok := callable(raw); ok {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		raw = v
	}
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case *Ref:
		return t, nil
	case *Instance:
		id, err := t.PrimaryKey(ctx)
		if err != nil {
			return nil, err
		}
		return &Ref{id: id, inst: t}, nil
	}

	id, err := r.id(ctx, raw)
	if err != nil {
		return nil, err
	}
	if r.fetcher == nil || id == nil {
		return id, nil
	}

	m, err := r.model()
	if err != nil {
		return nil, err
	}
	got, err := r.fetcher(ctx, m, id)
	if err != nil {
		return nil, err
	}
	switch t := got.(type) {
	case nil:
		return id, nil
	case *Instance:
		return &Ref{id: id, inst: t}, nil
	}
	data, ok := value.Map(got)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidFetchResult, got)
	}
	return &Ref{id: id, inst: m.Create(Data(data))}, nil
}

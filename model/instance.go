package model

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type boundMethod func(ctx context.Context, args ...any) (any, error)

// instanceCell is filled once the instance is assembled; instance methods
// capture it instead of the instance under construction.
type instanceCell struct {
	inst *Instance
}

// Instance is one record produced by a Model. Property values, the
// primary key, ToObj and Validate are computed on first use and shared by
// later and concurrent callers. Instances are never mutated in place.
type Instance struct {
	model      *Model
	data       Data
	memo       *memo
	getters    map[string]Getter
	validators map[string]BoundValidator

	mu      sync.RWMutex
	methods map[string]boundMethod
	sealed  bool
}

func (i *Instance) memoized(key string, get Getter) Getter {
	return func(ctx context.Context) (any, error) {
		return i.memo.do("get:"+key, func() (any, error) {
			return get(ctx)
		})
	}
}

// Model returns the model that produced the instance.
func (i *Instance) Model() *Model { return i.model }

// Raw returns the data the instance was created from.
func (i *Instance) Raw() Data { return i.data }

// Keys returns the property names, primary key first.
func (i *Instance) Keys() []string { return i.model.Keys() }

// Getter returns the memoized getter of a property.
func (i *Instance) Getter(key string) (Getter, bool) {
	g, ok := i.getters[key]
	return g, ok
}

// Getters returns a copy of the getter map.
func (i *Instance) Getters() map[string]Getter {
	out := make(map[string]Getter, len(i.getters))
	for k, g := range i.getters {
		out[k] = g
	}
	return out
}

// Get resolves a property value.
func (i *Instance) Get(ctx context.Context, key string) (any, error) {
	g, ok := i.getters[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q on model %s", ErrUnknownProperty, key, i.model.name)
	}
	return g(ctx)
}

// PrimaryKey resolves the primary key value.
func (i *Instance) PrimaryKey(ctx context.Context) (any, error) {
	return i.memo.do("pk", func() (any, error) {
		return i.Get(ctx, i.model.pk)
	})
}

// ReferencedID returns the id a reference property points at.
func (i *Instance) ReferencedID(ctx context.Context, key string) (any, error) {
	p, ok := i.model.props[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q on model %s", ErrUnknownProperty, key, i.model.name)
	}
	v, err := i.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.ReferencedID(ctx, v)
}

// ToObj resolves every property into plain data.
func (i *Instance) ToObj(ctx context.Context) (Data, error) {
	v, err := i.memo.do("toObj", func() (any, error) {
		return ToObj(ctx, i.getters)
	})
	if err != nil {
		return nil, err
	}
	return v.(Data), nil
}

// Serialize implements Serializable so nested instances flatten to data.
func (i *Instance) Serialize(ctx context.Context) (any, error) {
	return i.ToObj(ctx)
}

// Validate runs every property validator and model validator
// concurrently. Only failing keys appear in the result. Results are cached
// per NoOrmValidation setting; contexts carrying Extra flags are not cached.
func (i *Instance) Validate(ctx context.Context, vc ValidationContext) (Errors, error) {
	if len(vc.Extra) > 0 {
		return i.validate(ctx, vc)
	}
	v, err := i.memo.do(fmt.Sprintf("validate:%t", vc.NoOrmValidation), func() (any, error) {
		return i.validate(ctx, vc)
	})
	if err != nil {
		return nil, err
	}
	return v.(Errors).clone(), nil
}

func (i *Instance) validate(ctx context.Context, vc ValidationContext) (Errors, error) {
	keys := i.model.keys
	props := make([][]string, len(keys))
	overall := make([]string, len(i.model.modelValidators))

	g, gctx := errgroup.WithContext(ctx)
	for n, k := range keys {
		n, validate := n, i.validators[k]
		g.Go(func() error {
			msgs, err := validate(gctx, i, vc)
			props[n] = msgs
			return err
		})
	}
	for n, mv := range i.model.modelValidators {
		n, mv := n, mv
		g.Go(func() error {
			msg, err := mv(gctx, i, vc)
			overall[n] = msg
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	errs := Errors{}
	for n, k := range keys {
		if len(props[n]) > 0 {
			errs[k] = props[n]
		}
	}
	for _, msg := range overall {
		if msg != "" {
			errs[OverallKey] = append(errs[OverallKey], msg)
		}
	}
	return errs, nil
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Install attaches a method to the instance. It is only permitted from
// InstanceCreated callbacks, before the instance is returned by Create.
func (i *Instance) Install(name string, fn InstanceMethod) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sealed {
		return ErrSealed
	}
	if _, ok := i.model.props[name]; ok {
		return fmt.Errorf("%w: method %q shadows a property", ErrProtectedKey, name)
	}
	if _, ok := i.methods[name]; ok {
		return fmt.Errorf("%w: method %q already attached", ErrProtectedKey, name)
	}
	i.methods[name] = func(ctx context.Context, args ...any) (any, error) {
		return fn(ctx, i, args...)
	}
	return nil
}

func (i *Instance) seal() {
	i.mu.Lock()
	i.sealed = true
	i.mu.Unlock()
}

// HasMethod reports whether a method is attached.
func (i *Instance) HasMethod(name string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.methods[name]
	return ok
}

// Call invokes an attached method.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	i.mu.RLock()
	fn, ok := i.methods[name]
	i.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q on model %s", ErrUnknownMethod, name, i.model.name)
	}
	return fn(ctx, args...)
}

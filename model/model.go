package model

import (
	"context"
	"fmt"
	"sort"
)

// DefaultPrimaryKey is the primary key name used when a definition sets none.
const DefaultPrimaryKey = "id"

// reservedNames cannot be used as property or method names.
var reservedNames = map[string]bool{
	"toObj":         true,
	"validate":      true,
	"getPrimaryKey": true,
	"getModel":      true,
	"save":          true,
	"delete":        true,
}

// Definition declares a model.
type Definition struct {
	// Name identifies the model. Required.
	Name string

	// Namespace groups related models. Optional.
	Namespace string

	// Properties maps property names to their descriptors.
	Properties map[string]*Property

	// PrimaryKey names the primary key property. Default: "id".
	// When the default is used and no such property is declared, a
	// UniqueID property is injected.
	PrimaryKey string

	// ModelValidators check whole instances; their messages are collected
	// under OverallKey.
	ModelValidators []ModelValidator

	// InstanceMethods are attached to every instance.
	InstanceMethods map[string]InstanceMethod

	// ModelMethods are attached to the model.
	ModelMethods map[string]ModelMethod
}

// Options configures a model beyond its definition.
type Options struct {
	// InstanceCreated callbacks run, in order, after every instance is assembled.
	InstanceCreated []InstanceCreated

	// Extension is an opaque value integrations attach to the model, such
	// as the ORM wrapper that owns it.
	Extension any
}

// Model produces instances from raw data.
type Model struct {
	name      string
	namespace string
	pk        string
	props     map[string]*Property
	keys      []string

	modelValidators []ModelValidator
	instanceMethods map[string]InstanceMethod
	modelMethods    map[string]func(ctx context.Context, args ...any) (any, error)
	callbacks       []InstanceCreated
	ext             any
}

// modelCell is filled with the model once construction completes, so that
// model methods bound before that point can reach it.
type modelCell struct {
	m *Model
}

// New builds a model from a definition.
func New(def Definition, opts Options) (*Model, error) {
	if def.Name == "" {
		return nil, ErrMissingName
	}
	cell := &modelCell{}

	pk := def.PrimaryKey
	if pk == "" {
		pk = DefaultPrimaryKey
	}

	props := make(map[string]*Property, len(def.Properties)+1)
	for name, p := range def.Properties {
		if p == nil {
			return nil, fmt.Errorf("%w: property %q", ErrMissingType, name)
		}
		if reservedNames[name] {
			return nil, fmt.Errorf("%w: property %q", ErrProtectedKey, name)
		}
		props[name] = p
	}
	if _, ok := props[pk]; !ok {
		if def.PrimaryKey != "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingPrimaryKey, pk)
		}
		id, err := UniqueID(Config{Required: true})
		if err != nil {
			return nil, err
		}
		props[pk] = id
	}

	for name := range def.InstanceMethods {
		if err := checkMethodName(name, props); err != nil {
			return nil, err
		}
	}
	for name := range def.ModelMethods {
		if err := checkMethodName(name, props); err != nil {
			return nil, err
		}
		if _, ok := def.InstanceMethods[name]; ok {
			return nil, fmt.Errorf("%w: method %q", ErrProtectedKey, name)
		}
	}

	m := &Model{
		name:            def.Name,
		namespace:       def.Namespace,
		pk:              pk,
		props:           props,
		keys:            orderedKeys(pk, props),
		modelValidators: append([]ModelValidator(nil), def.ModelValidators...),
		instanceMethods: make(map[string]InstanceMethod, len(def.InstanceMethods)),
		modelMethods:    make(map[string]func(ctx context.Context, args ...any) (any, error), len(def.ModelMethods)),
		callbacks:       append([]InstanceCreated(nil), opts.InstanceCreated...),
		ext:             opts.Extension,
	}
	for name, fn := range def.InstanceMethods {
		m.instanceMethods[name] = fn
	}
	for name, fn := range def.ModelMethods {
		fn := fn
		m.modelMethods[name] = func(ctx context.Context, args ...any) (any, error) {
			return fn(ctx, cell.m, args...)
		}
	}

	cell.m = m
	return m, nil
}

func checkMethodName(name string, props map[string]*Property) error {
	if reservedNames[name] {
		return fmt.Errorf("%w: method %q", ErrProtectedKey, name)
	}
	if _, ok := props[name]; ok {
		return fmt.Errorf("%w: method %q shadows a property", ErrProtectedKey, name)
	}
	return nil
}

// orderedKeys places the primary key first, then the rest alphabetically.
func orderedKeys(pk string, props map[string]*Property) []string {
	keys := make([]string, 0, len(props))
	for name := range props {
		if name != pk {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return append([]string{pk}, keys...)
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Namespace returns the model namespace.
func (m *Model) Namespace() string { return m.namespace }

// QualifiedName joins namespace and name with a dot.
func (m *Model) QualifiedName() string {
	if m.namespace == "" {
		return m.name
	}
	return m.namespace + "." + m.name
}

// PrimaryKeyName returns the name of the primary key property.
func (m *Model) PrimaryKeyName() string { return m.pk }

// Keys returns the property names, primary key first.
func (m *Model) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Property returns a property by name.
func (m *Model) Property(name string) (*Property, bool) {
	p, ok := m.props[name]
	return p, ok
}

// Properties returns a copy of the property map.
func (m *Model) Properties() map[string]*Property {
	out := make(map[string]*Property, len(m.props))
	for k, v := range m.props {
		out[k] = v
	}
	return out
}

// References returns the names of reference properties.
func (m *Model) References() []string {
	var refs []string
	for _, k := range m.keys {
		if m.props[k].IsReference() {
			refs = append(refs, k)
		}
	}
	return refs
}

// Extension returns the value attached through Options.Extension.
func (m *Model) Extension() any { return m.ext }

// HasMethod reports whether a model method is attached.
func (m *Model) HasMethod(name string) bool {
	_, ok := m.modelMethods[name]
	return ok
}

// Call invokes a model method.
func (m *Model) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := m.modelMethods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on model %s", ErrUnknownMethod, name, m.name)
	}
	return fn(ctx, args...)
}

// Create produces an instance bound to data. Nothing is resolved until a
// getter, ToObj or Validate is called.
func (m *Model) Create(data Data) *Instance {
	if data == nil {
		data = Data{}
	}
	cell := &instanceCell{}
	inst := &Instance{
		model:      m,
		data:       data,
		memo:       newMemo(),
		getters:    make(map[string]Getter, len(m.keys)),
		validators: make(map[string]BoundValidator, len(m.keys)),
		methods:    make(map[string]boundMethod, len(m.instanceMethods)),
	}

	for _, k := range m.keys {
		p := m.props[k]
		get := inst.memoized(k, p.CreateGetter(data[k], data))
		inst.getters[k] = get
		inst.validators[k] = p.Validator(get)
	}
	for name, fn := range m.instanceMethods {
		fn := fn
		inst.methods[name] = func(ctx context.Context, args ...any) (any, error) {
			return fn(ctx, cell.inst, args...)
		}
	}

	cell.inst = inst
	for _, cb := range m.callbacks {
		cb(inst)
	}
	inst.seal()
	return inst
}

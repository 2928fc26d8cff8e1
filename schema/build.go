package schema

import (
	"fmt"
	"regexp"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/validators"
)

// builder makes a property of one schema type.
type builder func(cfg model.Config, spec PropertySpec, target model.ModelRef) (*model.Property, error)

var builders = map[string]builder{
	"text":         typed(model.TypeText, validators.IsString),
	"integer":      typed(model.TypeInteger, validators.IsInteger),
	"number":       typed(model.TypeNumber, validators.IsNumber),
	"boolean":      typed(model.TypeBoolean, validators.IsBoolean),
	"email":        typed(model.TypeEmail, validators.Email),
	"array":        func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) { return model.Array(cfg) },
	"object":       func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) { return model.Object(cfg) },
	"date":         func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) { return model.Date(cfg) },
	"uniqueId":     func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) { return model.UniqueID(cfg) },
	"lastModified": func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) { return orm.LastModifiedDate(cfg) },
	"reference": func(cfg model.Config, spec PropertySpec, target model.ModelRef) (*model.Property, error) {
		if spec.Fetch {
			cfg.Fetcher = orm.Fetch
		}
		return model.Reference(target, cfg)
	},
}

// typed builds a scalar property whose values, when present, must pass check.
func typed(typ model.Type, check validators.Func) builder {
	return func(cfg model.Config, _ PropertySpec, _ model.ModelRef) (*model.Property, error) {
		return model.NewProperty(typ, cfg, model.Check(optional(check)))
	}
}

// optional skips check for absent values; Required covers those.
func optional(check validators.Func) validators.Func {
	return func(v any) error {
		if v == nil {
			return nil
		}
		return check(v)
	}
}

// Models is a built schema.
type Models struct {
	byName map[string]*orm.Model
	names  []string
}

// Get returns the model declared under name.
func (ms *Models) Get(name string) (*orm.Model, bool) {
	m, ok := ms.byName[name]
	return m, ok
}

// Names returns the model names in sorted order.
func (ms *Models) Names() []string {
	return append([]string(nil), ms.names...)
}

// Base returns the underlying models in name order, e.g. for registering
// reference relationships with a datastore.
func (ms *Models) Base() []*model.Model {
	out := make([]*model.Model, len(ms.names))
	for i, name := range ms.names {
		out[i] = ms.byName[name].Model
	}
	return out
}

// Build creates an ORM model for every model in f, all persisted through
// adapter.
func Build(f *File, adapter orm.Adapter, opts orm.Options) (*Models, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ms := &Models{byName: make(map[string]*orm.Model, len(f.Models)), names: f.ModelNames()}
	ref := func(name string) model.ModelRef {
		return func() *model.Model {
			if om, ok := ms.byName[name]; ok {
				return om.Model
			}
			return nil
		}
	}

	for _, name := range ms.names {
		def, err := f.definition(name, ref)
		if err != nil {
			return nil, err
		}
		om, err := orm.New(def, adapter, opts)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		ms.byName[name] = om
	}
	return ms, nil
}

func (f *File) definition(name string, ref func(string) model.ModelRef) (model.Definition, error) {
	spec := f.Models[name]
	def := model.Definition{
		Name:       name,
		Namespace:  f.Namespace,
		PrimaryKey: spec.PrimaryKey,
		Properties: make(map[string]*model.Property, len(spec.Properties)),
	}
	for _, key := range sortedKeys(spec.Properties) {
		p, err := property(key, spec.Properties[key], ref)
		if err != nil {
			return model.Definition{}, fmt.Errorf("%s.%s: %w", name, key, err)
		}
		def.Properties[key] = p
	}
	for _, keys := range spec.UniqueTogether {
		def.ModelValidators = append(def.ModelValidators, orm.UniqueTogether(keys...))
	}
	return def, nil
}

func property(key string, spec PropertySpec, ref func(string) model.ModelRef) (*model.Property, error) {
	build, ok := builders[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, spec.Type)
	}
	cfg := model.Config{
		Value:        spec.Value,
		DefaultValue: spec.Default,
		Choices:      spec.Choices,
		MinLength:    spec.MinLength,
		MaxLength:    spec.MaxLength,
		MinValue:     spec.MinValue,
		MaxValue:     spec.MaxValue,
		AutoNow:      spec.AutoNow,
		Required:     spec.Required,
	}
	if spec.ValueSelector != "" {
		sel, err := Selector(spec.ValueSelector)
		if err != nil {
			return nil, err
		}
		cfg.ValueSelector = sel
	}
	if spec.Pattern != "" {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, err
		}
		cfg.Validators = append(cfg.Validators, model.Check(optional(validators.Regex(re))))
	}
	if spec.Unique {
		cfg.Validators = append(cfg.Validators, orm.Unique(key))
	}
	return build(cfg, spec, ref(spec.Model))
}

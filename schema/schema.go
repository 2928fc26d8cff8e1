// Package schema loads model definitions from YAML and builds ORM models
// from them.
//
// A schema file declares a namespace and its models:
//
//	version: "1"
//	namespace: library
//	models:
//	  Author:
//	    properties:
//	      name: {type: text, required: true, valueSelector: trim}
//	  Book:
//	    primaryKey: isbn
//	    properties:
//	      isbn: {type: text, required: true, unique: true}
//	      title: {type: text, required: true, maxLength: 200}
//	      author: {type: reference, model: Author, fetch: true}
//	    uniqueTogether:
//	      - [title, author]
//
// References name other models of the same file and resolve lazily, so
// declaration order does not matter.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Version is the schema file version this package reads.
const Version = "1"

var (
	// ErrUnsupportedVersion is returned for schema files of another version.
	ErrUnsupportedVersion = errors.New("arbor: unsupported schema version")

	// ErrNoModels is returned for schema files that declare no models.
	ErrNoModels = errors.New("arbor: schema declares no models")

	// ErrUnknownType is returned for property types this package cannot build.
	ErrUnknownType = errors.New("arbor: unknown property type")

	// ErrUnknownModel is returned when a reference names a model the file does not declare.
	ErrUnknownModel = errors.New("arbor: reference to undeclared model")

	// ErrUnknownKey is returned when a constraint names an undeclared property.
	ErrUnknownKey = errors.New("arbor: constraint on undeclared property")
)

// File is a parsed schema file.
type File struct {
	Version   string               `yaml:"version"`
	Namespace string               `yaml:"namespace,omitempty"`
	Models    map[string]ModelSpec `yaml:"models"`
}

// ModelSpec declares one model.
type ModelSpec struct {
	PrimaryKey     string                  `yaml:"primaryKey,omitempty"`
	Properties     map[string]PropertySpec `yaml:"properties"`
	UniqueTogether [][]string              `yaml:"uniqueTogether,omitempty"`
}

// PropertySpec declares one property. Type is one of text, integer,
// number, boolean, email, array, object, date, uniqueId, reference and
// lastModified.
type PropertySpec struct {
	Type          string   `yaml:"type"`
	Required      bool     `yaml:"required,omitempty"`
	Default       any      `yaml:"default,omitempty"`
	Value         any      `yaml:"value,omitempty"`
	Choices       []any    `yaml:"choices,omitempty"`
	MinLength     *int     `yaml:"minLength,omitempty"`
	MaxLength     *int     `yaml:"maxLength,omitempty"`
	MinValue      *float64 `yaml:"minValue,omitempty"`
	MaxValue      *float64 `yaml:"maxValue,omitempty"`
	Pattern       string   `yaml:"pattern,omitempty"`
	AutoNow       bool     `yaml:"autoNow,omitempty"`
	ValueSelector string   `yaml:"valueSelector,omitempty"`
	Unique        bool     `yaml:"unique,omitempty"`

	// Model names the referenced model of a reference property.
	Model string `yaml:"model,omitempty"`

	// Fetch hydrates the reference through the target model's datastore.
	Fetch bool `yaml:"fetch,omitempty"`
}

// Parse decodes a schema file and validates it. Unknown fields are errors.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the schema file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ModelNames returns the declared model names in sorted order.
func (f *File) ModelNames() []string {
	names := make([]string, 0, len(f.Models))
	for name := range f.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the file for problems that would prevent building it.
func (f *File) Validate() error {
	if f.Version != Version {
		return fmt.Errorf("%w: %q (expected %q)", ErrUnsupportedVersion, f.Version, Version)
	}
	if len(f.Models) == 0 {
		return ErrNoModels
	}
	for _, name := range f.ModelNames() {
		if err := f.validateModel(name, f.Models[name]); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) validateModel(name string, spec ModelSpec) error {
	for _, key := range sortedKeys(spec.Properties) {
		p := spec.Properties[key]
		if _, ok := builders[p.Type]; !ok {
			return fmt.Errorf("%w: %s.%s has type %q", ErrUnknownType, name, key, p.Type)
		}
		if p.Type == "reference" {
			if _, ok := f.Models[p.Model]; !ok {
				return fmt.Errorf("%w: %s.%s references %q", ErrUnknownModel, name, key, p.Model)
			}
		}
		if p.ValueSelector != "" {
			if _, err := Selector(p.ValueSelector); err != nil {
				return fmt.Errorf("%s.%s: %w", name, key, err)
			}
		}
		if p.Pattern != "" {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				return fmt.Errorf("%s.%s: pattern: %w", name, key, err)
			}
		}
	}
	if spec.PrimaryKey != "" {
		if _, ok := spec.Properties[spec.PrimaryKey]; !ok {
			return fmt.Errorf("%w: %s primary key %q", ErrUnknownKey, name, spec.PrimaryKey)
		}
	}
	for _, keys := range spec.UniqueTogether {
		for _, k := range keys {
			if _, ok := spec.Properties[k]; !ok {
				return fmt.Errorf("%w: %s uniqueTogether %q", ErrUnknownKey, name, k)
			}
		}
	}
	return nil
}

func sortedKeys(props map[string]PropertySpec) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

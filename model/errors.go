package model

import "errors"

var (
	// ErrMissingType is returned when a property is built without a type tag.
	ErrMissingType = errors.New("arbor: property type is required")

	// ErrInvalidValueSelector is returned when a value selector cannot be resolved.
	ErrInvalidValueSelector = errors.New("arbor: value selector must be a function")

	// ErrProtectedKey is returned when a property or method name collides
	// with another member or a reserved name.
	ErrProtectedKey = errors.New("arbor: protected key")

	// ErrMissingReferencedModel is returned when a reference has no target model.
	ErrMissingReferencedModel = errors.New("arbor: referenced model is missing")

	// ErrMissingName is returned when a model definition has no name.
	ErrMissingName = errors.New("arbor: model name is required")

	// ErrMissingPrimaryKey is returned when the primary key names no property.
	ErrMissingPrimaryKey = errors.New("arbor: primary key property is missing")

	// ErrUnknownProperty is returned when reading a property the model does not declare.
	ErrUnknownProperty = errors.New("arbor: unknown property")

	// ErrUnknownMethod is returned when calling a method that is not attached.
	ErrUnknownMethod = errors.New("arbor: unknown method")

	// ErrSealed is returned when installing a method after construction.
	ErrSealed = errors.New("arbor: instance is sealed")

	// ErrNotReference is returned when reference operations target a plain property.
	ErrNotReference = errors.New("arbor: property is not a reference")

	// ErrInvalidFetchResult is returned when a fetcher yields an unusable value.
	ErrInvalidFetchResult = errors.New("arbor: fetcher returned an unsupported value")
)

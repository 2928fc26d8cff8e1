package model

// Config holds the recognized property options. The zero value describes
// an optional, unvalidated property whose value is taken from raw input.
type Config struct {
	// Value is a constant that always wins over raw input.
	Value any

	// DefaultValue is used when the raw input is nil.
	DefaultValue any

	// Choices restricts the value (or every element of an array value).
	Choices []any

	// LazyLoad transforms the raw value once per getter.
	LazyLoad LazyLoad

	// ValueSelector post-processes every resolved value. Nil means identity.
	ValueSelector ValueSelector

	// Validators run after the shorthand validators below.
	Validators []PropertyValidator

	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64

	// AutoNow fills date properties with the current time when unset.
	AutoNow bool

	// Fetcher hydrates reference properties.
	Fetcher Fetcher

	// Shorthands that synthesize validators.
	Required  bool
	IsInteger bool
	IsNumber  bool
	IsString  bool
	IsArray   bool
	IsBoolean bool

	// Extra is an open extension point for integrations (see orm.LastModifiedDate).
	Extra map[string]any
}

// Int returns a pointer to n, for MinLength and MaxLength.
func Int(n int) *int { return &n }

// Float returns a pointer to f, for MinValue and MaxValue.
func Float(f float64) *float64 { return &f }

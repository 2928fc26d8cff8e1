package schema

import (
	"fmt"
	"strings"

	"github.com/jacentio/arbor/model"
)

// selectors are the value selectors a schema may name. They leave
// non-string values untouched.
var selectors = map[string]model.ValueSelector{
	"trim":  onString(strings.TrimSpace),
	"lower": onString(strings.ToLower),
	"upper": onString(strings.ToUpper),
}

func onString(fn func(string) string) model.ValueSelector {
	return func(v any) any {
		if s, ok := v.(string); ok {
			return fn(s)
		}
		return v
	}
}

// Selector returns the named value selector.
func Selector(name string) (model.ValueSelector, error) {
	sel, ok := selectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown selector %q", model.ErrInvalidValueSelector, name)
	}
	return sel, nil
}

package orm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jacentio/arbor/model"
)

var (
	// ErrMissingAdapter is returned by New when no adapter is given.
	ErrMissingAdapter = errors.New("arbor: datastore adapter is required")

	// ErrNotOrmModel is returned when a uniqueness check runs on an
	// instance whose model was not built by New.
	ErrNotOrmModel = errors.New("arbor: model has no datastore")
)

// ValidationError is returned by Save when an instance fails validation.
type ValidationError struct {
	ModelName    string
	KeysToErrors model.Errors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.KeysToErrors))
	for k := range e.KeysToErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("arbor: %s did not pass validation: %s", e.ModelName, strings.Join(keys, ", "))
}

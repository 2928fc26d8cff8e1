package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/query"
)

// Unique requires that no other stored record has the same value for key.
// The comparison is case insensitive.
func Unique(key string) model.PropertyValidator {
	return func(ctx context.Context, v any, inst *model.Instance, vc model.ValidationContext) (string, error) {
		if vc.NoOrmValidation {
			return "", nil
		}
		conflict, err := findConflict(ctx, inst, []string{key}, []any{v})
		if err != nil || !conflict {
			return "", err
		}
		return fmt.Sprintf("%s must be unique. Another instance found.", key), nil
	}
}

// UniqueTogether requires that no other stored record shares the same
// combination of values for keys.
func UniqueTogether(keys ...string) model.ModelValidator {
	return func(ctx context.Context, inst *model.Instance, vc model.ValidationContext) (string, error) {
		if vc.NoOrmValidation || len(keys) == 0 {
			return "", nil
		}
		values := make([]any, len(keys))
		for i, k := range keys {
			v, err := inst.Get(ctx, k)
			if err != nil {
				return "", err
			}
			values[i] = v
		}
		conflict, err := findConflict(ctx, inst, keys, values)
		if err != nil || !conflict {
			return "", err
		}
		return fmt.Sprintf("%s must be unique together. Another instance found.", strings.Join(keys, ",")), nil
	}
}

// findConflict searches for at most two records matching every key and
// decides whether they conflict with inst:
//
//	0 results                      no conflict
//	1 result with inst's id        no conflict
//	1 result with another id       conflict
//	2 results including inst's id  no conflict
//	2 results without inst's id    conflict
//
// With two results that include inst, the other record is not inspected
// further even if it duplicates a third stored record.
func findConflict(ctx context.Context, inst *model.Instance, keys []string, values []any) (bool, error) {
	om, ok := inst.Model().Extension().(*Model)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotOrmModel, inst.Model().Name())
	}

	b := query.New()
	for i, k := range keys {
		v, err := plain(ctx, values[i])
		if err != nil {
			return false, err
		}
		if i == 0 {
			b = b.Property(k, v)
		} else {
			b = b.And().Property(k, v)
		}
	}
	s, err := b.Take(2).Compile()
	if err != nil {
		return false, err
	}

	result, err := om.Search(ctx, s)
	if err != nil {
		return false, err
	}
	if len(result.Instances) == 0 {
		return false, nil
	}

	id, err := inst.PrimaryKey(ctx)
	if err != nil {
		return false, err
	}
	for _, found := range result.Instances {
		other, err := found.PrimaryKey(ctx)
		if err != nil {
			return false, err
		}
		if sameID(id, other) {
			return false, nil
		}
	}
	return true, nil
}

// plain reduces references and nested instances to their serialized form
// so they can be matched against stored records.
func plain(ctx context.Context, v any) (any, error) {
	if s, ok := v.(model.Serializable); ok {
		return s.Serialize(ctx)
	}
	return v, nil
}

func sameID(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

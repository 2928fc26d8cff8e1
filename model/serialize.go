package model

import (
	"context"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/arbor/internal/value"
)

// ToObj resolves a set of getters into plain data. Getters run
// concurrently and must not depend on each other's state.
//
// Callable results are called, Serializable results recurse, dates become
// canonical text, []byte becomes a string and collections are normalized
// element by element. Nested maps come out as map[string]any.
func ToObj(ctx context.Context, getters map[string]Getter) (Data, error) {
	var mu sync.Mutex
	out := make(Data, len(getters))

	g, gctx := errgroup.WithContext(ctx)
	for k, get := range getters {
		k, get := k, get
		g.Go(func() error {
			v, err := get(gctx)
			if err != nil {
				return err
			}
			v, err = normalize(gctx, v)
			if err != nil {
				return err
			}
			mu.Lock()
			out[k] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(ctx context.Context, v any) (any, error) {
	if fn, ok := callable(v); ok {
		r, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return normalize(ctx, r)
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case Serializable:
		r, err := t.Serialize(ctx)
		if err != nil {
			return nil, err
		}
		return normalize(ctx, r)
	case time.Time:
		return value.FormatTime(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return value.FormatTime(*t), nil
	case []byte:
		return string(t), nil
	case string, bool:
		return t, nil
	}

	if m, ok := value.Map(v); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			n, err := normalize(ctx, e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	if s, ok := value.Slice(v); ok {
		out := make([]any, len(s))
		for i, e := range s {
			n, err := normalize(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil
	}
	return v, nil
}

package model_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jacentio/arbor/model"
)

func TestNewPropertyRequiresType(t *testing.T) {
	_, err := model.NewProperty("", model.Config{})
	assert.ErrorIs(t, err, model.ErrMissingType)
}

func TestConstantValueWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		constant := rapid.String().Draw(t, "constant")
		raw := rapid.String().Draw(t, "raw")

		p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{Value: constant}))
		got, err := p.CreateGetter(raw, nil)(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != constant {
			t.Fatalf("expected %q, got %q", constant, got)
		}
	})
}

func TestRawValuePassesThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.Int().Draw(t, "raw")

		p := model.MustProperty(model.NewProperty(model.TypeInteger, model.Config{}))
		got, err := p.CreateGetter(raw, nil)(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != raw {
			t.Fatalf("expected %d, got %v", raw, got)
		}
	})
}

func TestCallableRawValueIsCalled(t *testing.T) {
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{}))

	got, err := p.CreateGetter(func() any { return "computed" }, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "computed", got)

	boom := errors.New("boom")
	_, err = p.CreateGetter(func(context.Context) (any, error) { return nil, boom }, nil)(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDefaultValueOnlyForNil(t *testing.T) {
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{DefaultValue: "fallback"}))
	ctx := context.Background()

	got, err := p.CreateGetter(nil, nil)(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	got, err = p.CreateGetter("", nil)(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestValueSelectorPostProcesses(t *testing.T) {
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{
		DefaultValue:  "  Padded ",
		ValueSelector: func(v any) any { return strings.TrimSpace(v.(string)) },
	}))
	got, err := p.CreateGetter(nil, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Padded", got)
}

func TestLazyLoadRunsOnce(t *testing.T) {
	var calls int32
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{
		LazyLoad: func(_ context.Context, raw any, _ model.Data) (any, error) {
			atomic.AddInt32(&calls, 1)
			return raw.(string) + "!", nil
		},
	}))
	get := p.CreateGetter("hi", nil)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "hi!", v)
	}
}

func TestLazyLoadErrorIsRetried(t *testing.T) {
	var calls int32
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{
		LazyLoad: func(context.Context, any, model.Data) (any, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	}))
	get := p.CreateGetter(nil, nil)

	_, err := get(context.Background())
	require.Error(t, err)
	v, err := get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestValidatorSkipsFalsyOptional(t *testing.T) {
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{MinLength: model.Int(3)}))

	msgs, err := p.Validator(p.CreateGetter("", nil))(context.Background(), nil, model.ValidationContext{})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = p.Validator(p.CreateGetter("ab", nil))(context.Background(), nil, model.ValidationContext{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestValidatorDedupesMessages(t *testing.T) {
	same := func(context.Context, any, *model.Instance, model.ValidationContext) (string, error) {
		return "bad", nil
	}
	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{
		Validators: []model.PropertyValidator{same, same},
	}))
	msgs, err := p.Validator(p.CreateGetter("x", nil))(context.Background(), nil, model.ValidationContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, msgs)
}

func TestUniqueIDStable(t *testing.T) {
	p := model.MustProperty(model.UniqueID(model.Config{}))
	get := p.CreateGetter(nil, nil)

	a, err := get(context.Background())
	require.NoError(t, err)
	b, err := get(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.Equal(t, a, b)

	got, err := p.CreateGetter("given", nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "given", got)
}

func TestDateCoercion(t *testing.T) {
	p := model.MustProperty(model.Date(model.Config{}))

	got, err := p.CreateGetter("2024-03-01T10:20:30.000Z", nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), got)

	msgs, err := p.Validator(p.CreateGetter("not a date", nil))(context.Background(), nil, model.ValidationContext{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestDateAutoNow(t *testing.T) {
	p := model.MustProperty(model.Date(model.Config{AutoNow: true}))
	before := time.Now().UTC()

	got, err := p.CreateGetter(nil, nil)(context.Background())
	require.NoError(t, err)
	ts, ok := got.(time.Time)
	require.True(t, ok)
	assert.False(t, ts.Before(before.Add(-time.Second)))
}

func TestArrayCoercion(t *testing.T) {
	p := model.MustProperty(model.Array(model.Config{Choices: []any{"a", "b"}}))
	ctx := context.Background()

	got, err := p.CreateGetter(nil, nil)(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)

	got, err = p.CreateGetter([]string{"a", "b"}, nil)(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	msgs, err := p.Validator(p.CreateGetter([]string{"a", "z"}, nil))(ctx, nil, model.ValidationContext{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestObjectCoercion(t *testing.T) {
	p := model.MustProperty(model.Object(model.Config{}))
	got, err := p.CreateGetter(map[string]int{"a": 1}, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Data{"a": 1}, got)
}

func TestDenormalized(t *testing.T) {
	p := model.MustProperty(model.Denormalized(model.TypeText, func(_ context.Context, data model.Data) (any, error) {
		return data["first"].(string) + " " + data["last"].(string), nil
	}, model.Config{}))

	got, err := p.CreateGetter("ignored", model.Data{"first": "Ada", "last": "Lovelace"})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got)
}

package model_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/model"
)

func newOwner(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New(model.Definition{
		Name: "Owner",
		Properties: map[string]*model.Property{
			"name": model.MustProperty(model.NewProperty(model.TypeText, model.Config{})),
		},
	}, model.Options{})
	require.NoError(t, err)
	return m
}

func TestReferenceRequiresModel(t *testing.T) {
	_, err := model.Reference(nil, model.Config{})
	assert.ErrorIs(t, err, model.ErrMissingReferencedModel)

	p := model.MustProperty(model.NewProperty(model.TypeText, model.Config{}))
	_, err = p.ReferencedModel()
	assert.ErrorIs(t, err, model.ErrNotReference)
}

func TestReferencedID(t *testing.T) {
	owner := newOwner(t)
	p := model.MustProperty(model.Reference(model.RefTo(owner), model.Config{}))
	ctx := context.Background()

	target, err := p.ReferencedModel()
	require.NoError(t, err)
	assert.Same(t, owner, target)

	id, err := p.ReferencedID(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	id, err = p.ReferencedID(ctx, map[string]any{"id": "from-map"})
	require.NoError(t, err)
	assert.Equal(t, "from-map", id)

	inst := owner.Create(model.Data{"id": "from-instance"})
	id, err = p.ReferencedID(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, "from-instance", id)
}

func TestReferenceWithoutFetcherYieldsID(t *testing.T) {
	owner := newOwner(t)
	p := model.MustProperty(model.Reference(model.RefTo(owner), model.Config{}))

	got, err := p.CreateGetter(map[string]any{"id": "o1"}, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "o1", got)
}

func TestReferenceRunsLazyLoadBeforeResolving(t *testing.T) {
	owner := newOwner(t)
	trim := func(_ context.Context, raw any, _ model.Data) (any, error) {
		if s, ok := raw.(string); ok {
			return strings.TrimPrefix(s, "owner:"), nil
		}
		return raw, nil
	}
	fetch := func(_ context.Context, _ *model.Model, id any) (any, error) {
		return model.Data{"id": id, "name": "Grace"}, nil
	}

	pet, err := model.New(model.Definition{
		Name: "Pet",
		Properties: map[string]*model.Property{
			"owner":  model.MustProperty(model.Reference(model.RefTo(owner), model.Config{LazyLoad: trim})),
			"keeper": model.MustProperty(model.Reference(model.RefTo(owner), model.Config{LazyLoad: trim, Fetcher: fetch})),
		},
	}, model.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	inst := pet.Create(model.Data{"id": "p1", "owner": "owner:o1", "keeper": "owner:o2"})
	v, err := inst.Get(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "o1", v)

	v, err = inst.Get(ctx, "keeper")
	require.NoError(t, err)
	ref, ok := v.(*model.Ref)
	require.True(t, ok, "expected a fetched reference, got %T", v)
	assert.Equal(t, "o2", ref.ID())

	failing := model.MustProperty(model.Reference(model.RefTo(owner), model.Config{
		LazyLoad: func(context.Context, any, model.Data) (any, error) { return nil, assert.AnError },
	}))
	broken, err := model.New(model.Definition{
		Name:       "Broken",
		Properties: map[string]*model.Property{"owner": failing},
	}, model.Options{})
	require.NoError(t, err)
	_, err = broken.Create(model.Data{"owner": "o1"}).Get(ctx, "owner")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestReferenceFetcherHydrates(t *testing.T) {
	owner := newOwner(t)
	var asked []any
	fetch := func(_ context.Context, m *model.Model, id any) (any, error) {
		asked = append(asked, id)
		if id == "missing" {
			return nil, nil
		}
		return model.Data{"id": id, "name": "Grace"}, nil
	}

	pet, err := model.New(model.Definition{
		Name: "Pet",
		Properties: map[string]*model.Property{
			"owner": model.MustProperty(model.Reference(model.RefTo(owner), model.Config{Fetcher: fetch})),
		},
	}, model.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	inst := pet.Create(model.Data{"id": "p1", "owner": "o1"})
	v, err := inst.Get(ctx, "owner")
	require.NoError(t, err)
	ref, ok := v.(*model.Ref)
	require.True(t, ok)
	assert.Equal(t, "o1", ref.ID())
	name, err := ref.Instance().Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)

	_, err = inst.Get(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, []any{"o1"}, asked)

	obj, err := inst.ToObj(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o1", obj["owner"])

	id, err := inst.ReferencedID(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "o1", id)

	v, err = pet.Create(model.Data{"owner": "missing"}).Get(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "missing", v)
}

func TestReferenceToInstance(t *testing.T) {
	owner := newOwner(t)
	pet, err := model.New(model.Definition{
		Name: "Pet",
		Properties: map[string]*model.Property{
			"owner": model.MustProperty(model.Reference(model.RefTo(owner), model.Config{})),
		},
	}, model.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	o := owner.Create(model.Data{"id": "o9", "name": "Linus"})
	obj, err := pet.Create(model.Data{"owner": o}).ToObj(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o9", obj["owner"])
}

func TestSelfReference(t *testing.T) {
	var node *model.Model
	var err error
	node, err = model.New(model.Definition{
		Name: "Node",
		Properties: map[string]*model.Property{
			"parent": model.MustProperty(model.Reference(func() *model.Model { return node }, model.Config{})),
		},
	}, model.Options{})
	require.NoError(t, err)

	p, _ := node.Property("parent")
	target, err := p.ReferencedModel()
	require.NoError(t, err)
	assert.Same(t, node, target)
	assert.Equal(t, []string{"parent"}, node.References())
}

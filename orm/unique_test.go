package orm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/query"
)

func newUniqueUsers(t *testing.T, adapter orm.Adapter) *orm.Model {
	t.Helper()
	m, err := orm.New(model.Definition{
		Name: "User",
		Properties: map[string]*model.Property{
			"name": model.MustProperty(model.NewProperty(model.TypeText, model.Config{
				Validators: []model.PropertyValidator{orm.Unique("name")},
			})),
			"age": model.MustProperty(model.NewProperty(model.TypeInteger, model.Config{})),
		},
		ModelValidators: []model.ModelValidator{orm.UniqueTogether("name", "age")},
	}, adapter, orm.Options{})
	require.NoError(t, err)
	return m
}

func TestUniquenessDecisions(t *testing.T) {
	self := model.Data{"id": "me", "name": "ada", "age": 36}
	other := model.Data{"id": "other", "name": "ada", "age": 36}
	third := model.Data{"id": "third", "name": "ada", "age": 36}

	tests := []struct {
		name    string
		results []model.Data
		want    model.Errors
	}{
		{"no results", nil, nil},
		{"only self", []model.Data{self}, nil},
		{"one other", []model.Data{other}, model.Errors{
			"name":           {"name must be unique. Another instance found."},
			model.OverallKey: {"name,age must be unique together. Another instance found."},
		}},
		{"self among two", []model.Data{other, self}, nil},
		{"two others", []model.Data{other, third}, model.Errors{
			"name":           {"name must be unique. Another instance found."},
			model.OverallKey: {"name,age must be unique together. Another instance found."},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.pages = []*orm.RawResult{{Instances: tt.results}}
			users := newUniqueUsers(t, fake)

			errs, err := users.Create(self).Validate(context.Background(), model.ValidationContext{})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.want, errs)
		})
	}
}

func TestUniqueQueryShape(t *testing.T) {
	fake := newFake()
	users := newUniqueUsers(t, fake)

	_, err := users.Create(model.Data{"id": "me", "name": "Ada", "age": 36}).
		Validate(context.Background(), model.ValidationContext{})
	require.NoError(t, err)
	require.Len(t, fake.searches, 2)

	for _, s := range fake.searches {
		require.NotNil(t, s.Take)
		assert.Equal(t, 2, *s.Take)
		first, ok := s.Query[0].(query.PropertyMatch)
		require.True(t, ok)
		assert.Equal(t, "name", first.Key)
		assert.Equal(t, "Ada", first.Value)
		assert.False(t, first.CaseSensitive)
	}
}

func TestUniqueSkippedWithoutOrmValidation(t *testing.T) {
	fake := newFake()
	fake.pages = []*orm.RawResult{{Instances: []model.Data{{"id": "other", "name": "ada", "age": 36}}}}
	users := newUniqueUsers(t, fake)

	errs, err := users.Create(model.Data{"id": "me", "name": "ada", "age": 36}).
		Validate(context.Background(), model.ValidationContext{NoOrmValidation: true})
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Empty(t, fake.searches)
}

func TestUniqueOnPlainModel(t *testing.T) {
	m, err := model.New(model.Definition{
		Name: "Loose",
		Properties: map[string]*model.Property{
			"name": model.MustProperty(model.NewProperty(model.TypeText, model.Config{
				Validators: []model.PropertyValidator{orm.Unique("name")},
			})),
		},
	}, model.Options{})
	require.NoError(t, err)

	_, err = m.Create(model.Data{"name": "ada"}).Validate(context.Background(), model.ValidationContext{})
	assert.ErrorIs(t, err, orm.ErrNotOrmModel)
}

func TestSaveReportsConflict(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	fake.pages = []*orm.RawResult{{Instances: []model.Data{{"id": "other", "name": "ada", "age": 36}}}}
	users := newUniqueUsers(t, fake)

	_, err := users.Save(ctx, users.Create(model.Data{"id": "me", "name": "ada", "age": 36}))
	var verr *orm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name must be unique. Another instance found."}, verr.KeysToErrors["name"])
}

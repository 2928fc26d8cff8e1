package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/arbor/memstore"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/schema"
)

const library = `
version: "1"
namespace: library
models:
  Author:
    properties:
      name: {type: text, required: true, valueSelector: trim}
      email: {type: email}
      slug: {type: text, unique: true, valueSelector: lower}
  Book:
    primaryKey: isbn
    properties:
      isbn: {type: text, required: true, pattern: "^[0-9-]+$"}
      title: {type: text, required: true, maxLength: 20}
      pages: {type: integer, minValue: 1}
      genre: {type: text, choices: [sf, fantasy]}
      tags: {type: array}
      author: {type: reference, model: Author, fetch: true}
      updated: {type: lastModified}
    uniqueTogether:
      - [title, author]
`

func buildLibrary(t *testing.T) *schema.Models {
	t.Helper()
	f, err := schema.Parse([]byte(library))
	require.NoError(t, err)
	ms, err := schema.Build(f, memstore.New(memstore.DefaultConfig()), orm.Options{})
	require.NoError(t, err)
	return ms
}

func TestParse(t *testing.T) {
	f, err := schema.Parse([]byte(library))
	require.NoError(t, err)

	assert.Equal(t, "library", f.Namespace)
	assert.Equal(t, []string{"Author", "Book"}, f.ModelNames())
	assert.Equal(t, "isbn", f.Models["Book"].PrimaryKey)
	assert.Equal(t, [][]string{{"title", "author"}}, f.Models["Book"].UniqueTogether)

	title := f.Models["Book"].Properties["title"]
	require.NotNil(t, title.MaxLength)
	assert.Equal(t, 20, *title.MaxLength)
	assert.Equal(t, []any{"sf", "fantasy"}, f.Models["Book"].Properties["genre"].Choices)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "unsupported version",
			yaml: "version: \"2\"\nmodels:\n  A:\n    properties:\n      x: {type: text}\n",
			want: schema.ErrUnsupportedVersion,
		},
		{
			name: "no models",
			yaml: "version: \"1\"\nmodels: {}\n",
			want: schema.ErrNoModels,
		},
		{
			name: "unknown type",
			yaml: "version: \"1\"\nmodels:\n  A:\n    properties:\n      x: {type: money}\n",
			want: schema.ErrUnknownType,
		},
		{
			name: "undeclared reference",
			yaml: "version: \"1\"\nmodels:\n  A:\n    properties:\n      b: {type: reference, model: B}\n",
			want: schema.ErrUnknownModel,
		},
		{
			name: "unknown selector",
			yaml: "version: \"1\"\nmodels:\n  A:\n    properties:\n      x: {type: text, valueSelector: reverse}\n",
			want: model.ErrInvalidValueSelector,
		},
		{
			name: "primary key not declared",
			yaml: "version: \"1\"\nmodels:\n  A:\n    primaryKey: slug\n    properties:\n      x: {type: text}\n",
			want: schema.ErrUnknownKey,
		},
		{
			name: "unique together on undeclared property",
			yaml: "version: \"1\"\nmodels:\n  A:\n    properties:\n      x: {type: text}\n    uniqueTogether: [[x, y]]\n",
			want: schema.ErrUnknownKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseRejectsUnknownFieldsAndBadPatterns(t *testing.T) {
	_, err := schema.Parse([]byte("version: \"1\"\nmodels:\n  A:\n    properties:\n      x: {type: text, requried: true}\n"))
	assert.Error(t, err)

	_, err = schema.Parse([]byte("version: \"1\"\nmodels:\n  A:\n    properties:\n      x: {type: text, pattern: \"([\"}\n"))
	assert.ErrorContains(t, err, "pattern")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(library), 0o600))

	f, err := schema.Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Models, 2)

	_, err = schema.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSelector(t *testing.T) {
	trim, err := schema.Selector("trim")
	require.NoError(t, err)
	assert.Equal(t, "Dune", trim("  Dune "))
	assert.Equal(t, 7, trim(7))

	upper, err := schema.Selector("upper")
	require.NoError(t, err)
	assert.Equal(t, "DUNE", upper("dune"))

	_, err = schema.Selector("reverse")
	assert.ErrorIs(t, err, model.ErrInvalidValueSelector)
}

func TestBuild(t *testing.T) {
	ms := buildLibrary(t)

	assert.Equal(t, []string{"Author", "Book"}, ms.Names())
	books, ok := ms.Get("Book")
	require.True(t, ok)
	authors, ok := ms.Get("Author")
	require.True(t, ok)
	_, ok = ms.Get("Shelf")
	assert.False(t, ok)

	assert.Equal(t, "library.Book", books.QualifiedName())
	assert.Equal(t, "isbn", books.PrimaryKeyName())
	assert.Equal(t, "id", authors.PrimaryKeyName())
	assert.Equal(t, []string{"author"}, books.References())

	prop, ok := books.Property("author")
	require.True(t, ok)
	target, err := prop.ReferencedModel()
	require.NoError(t, err)
	assert.Same(t, authors.Model, target)

	base := ms.Base()
	require.Len(t, base, 2)
	assert.Same(t, authors.Model, base[0])
	assert.Same(t, books.Model, base[1])
}

func TestBuildValidation(t *testing.T) {
	ctx := context.Background()
	books, _ := buildLibrary(t).Get("Book")

	tests := []struct {
		name    string
		data    model.Data
		badKeys []string
	}{
		{
			name: "valid",
			data: model.Data{"isbn": "978-0", "title": "Dune", "pages": 412, "genre": "sf"},
		},
		{
			name: "optional fields absent",
			data: model.Data{"isbn": "978-0", "title": "Dune"},
		},
		{
			name:    "missing required",
			data:    model.Data{"isbn": "978-0"},
			badKeys: []string{"title"},
		},
		{
			name:    "pattern",
			data:    model.Data{"isbn": "abc", "title": "Dune"},
			badKeys: []string{"isbn"},
		},
		{
			name:    "type and bounds",
			data:    model.Data{"isbn": "1", "title": "A title that is far too long", "pages": "many"},
			badKeys: []string{"pages", "title"},
		},
		{
			name:    "choices",
			data:    model.Data{"isbn": "1", "title": "Dune", "genre": "poetry"},
			badKeys: []string{"genre"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := books.Create(tt.data).Validate(ctx, model.ValidationContext{NoOrmValidation: true})
			require.NoError(t, err)

			var keys []string
			for k := range errs {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.badKeys, keys)
		})
	}
}

func TestBuildPersistsThroughAdapter(t *testing.T) {
	ctx := context.Background()
	ms := buildLibrary(t)
	authors, _ := ms.Get("Author")
	books, _ := ms.Get("Book")

	author, err := authors.Save(ctx, authors.Create(model.Data{"name": "  Frank Herbert ", "slug": "Herbert"}))
	require.NoError(t, err)
	name, err := author.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", name)
	authorID, err := author.PrimaryKey(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, authorID)

	book, err := books.Save(ctx, books.Create(model.Data{"isbn": "978-0", "title": "Dune", "author": authorID}))
	require.NoError(t, err)
	updated, err := book.Get(ctx, "updated")
	require.NoError(t, err)
	assert.NotEmpty(t, updated)

	got, err := books.Retrieve(ctx, "978-0")
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := got.Get(ctx, "author")
	require.NoError(t, err)
	ref, ok := v.(*model.Ref)
	require.True(t, ok, "expected a fetched reference, got %T", v)
	assert.Equal(t, authorID, ref.ID())
	require.NotNil(t, ref.Instance())
	fetched, err := ref.Instance().Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", fetched)
}

func TestBuildUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	ms := buildLibrary(t)
	authors, _ := ms.Get("Author")
	books, _ := ms.Get("Book")

	_, err := authors.Save(ctx, authors.Create(model.Data{"name": "Frank", "slug": "herbert"}))
	require.NoError(t, err)

	_, err = authors.Save(ctx, authors.Create(model.Data{"name": "Brian", "slug": "HERBERT"}))
	var verr *orm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"slug must be unique. Another instance found."}, verr.KeysToErrors["slug"])

	_, err = books.Save(ctx, books.Create(model.Data{"isbn": "1", "title": "Dune", "author": "a1"}))
	require.NoError(t, err)
	_, err = books.Save(ctx, books.Create(model.Data{"isbn": "2", "title": "Dune", "author": "a1"}))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.KeysToErrors[model.OverallKey], "title,author must be unique together. Another instance found.")

	_, err = books.Save(ctx, books.Create(model.Data{"isbn": "3", "title": "Dune", "author": "a2"}))
	assert.NoError(t, err)
}

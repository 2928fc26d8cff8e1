package store_test

import (
	"errors"
	"testing"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/store"
)

func TestNewRegistry(t *testing.T) {
	r := store.NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if len(r.AllRelationships()) != 0 {
		t.Errorf("expected no relationships, got %d", len(r.AllRelationships()))
	}
	if r.HasChildren("library.Author") {
		t.Error("expected empty registry to have no children")
	}
	if r.ChildrenOf("") != nil {
		t.Error("expected nil for an empty type")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := store.NewRegistry()
	r.Register(store.Relationship{
		ParentType:     "library.Author",
		ChildType:      "library.Book",
		ChildTableName: "library_Book",
		ParentKeyAttr:  "author",
	})

	rels := r.AllRelationships()
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if !r.HasChildren("library.Author") {
		t.Error("expected library.Author to have children")
	}
	if r.HasChildren("library.Book") {
		t.Error("expected library.Book to have no children")
	}
	if parents := r.ParentsOf("library.Book"); len(parents) != 1 || parents[0].ParentType != "library.Author" {
		t.Errorf("unexpected parents %v", parents)
	}
}

func TestRegistry_MultipleChildTypes(t *testing.T) {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentType: "library.Author", ChildType: "library.Book", ParentKeyAttr: "author"})
	r.Register(store.Relationship{ParentType: "library.Author", ChildType: "library.Essay", ParentKeyAttr: "writer"})
	r.Register(store.Relationship{ParentType: "library.Shelf", ChildType: "library.Book", ParentKeyAttr: "shelf"})

	children := r.ChildrenOf("library.Author")
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].ChildType != "library.Book" || children[1].ChildType != "library.Essay" {
		t.Errorf("expected registration order, got %v", children)
	}
	if len(r.ParentsOf("library.Book")) != 2 {
		t.Errorf("expected Book to have 2 parents, got %d", len(r.ParentsOf("library.Book")))
	}
}

func TestRegistry_RegisterModel(t *testing.T) {
	author, book := libraryModels(t)
	r := store.NewRegistry()

	if err := r.RegisterModel(author, store.DefaultTableName); err != nil {
		t.Fatalf("RegisterModel(author): %v", err)
	}
	if len(r.AllRelationships()) != 0 {
		t.Fatal("expected a model without references to add nothing")
	}

	if err := r.RegisterModel(book, store.DefaultTableName); err != nil {
		t.Fatalf("RegisterModel(book): %v", err)
	}
	rels := r.ChildrenOf("library.Author")
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	want := store.Relationship{
		ParentType:     "library.Author",
		ChildType:      "library.Book",
		ChildTableName: "library_Book",
		ParentKeyAttr:  "author",
	}
	if rels[0] != want {
		t.Errorf("expected %+v, got %+v", want, rels[0])
	}
}

func TestRegistry_RegisterModel_UnresolvedReference(t *testing.T) {
	var pending *model.Model
	review, err := model.New(model.Definition{
		Name: "Review",
		Properties: map[string]*model.Property{
			"book": model.MustProperty(model.Reference(func() *model.Model { return pending }, model.Config{})),
		},
	}, model.Options{})
	if err != nil {
		t.Fatal(err)
	}

	err = store.NewRegistry().RegisterModel(review, store.DefaultTableName)
	if !errors.Is(err, model.ErrMissingReferencedModel) {
		t.Errorf("expected ErrMissingReferencedModel, got %v", err)
	}
}

func TestRegistry_DeepHierarchy(t *testing.T) {
	r := store.NewRegistry()
	chain := []string{"org", "library", "shelf", "book", "page"}
	for i := 0; i < len(chain)-1; i++ {
		r.Register(store.Relationship{ParentType: chain[i], ChildType: chain[i+1]})
	}

	for i, typ := range chain {
		want := i < len(chain)-1
		if got := r.HasChildren(typ); got != want {
			t.Errorf("HasChildren(%q) = %v, expected %v", typ, got, want)
		}
	}
}

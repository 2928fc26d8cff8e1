package store

import (
	"fmt"

	"github.com/jacentio/arbor/model"
)

// Relationship is one reference property: records of ChildType point at
// records of ParentType through ParentKeyAttr.
type Relationship struct {
	// ParentType is the referenced model's qualified name (e.g., "library.Author").
	ParentType string

	// ChildType is the referencing model's qualified name (e.g., "library.Book").
	ChildType string

	// ChildTableName is the DynamoDB table name for the child (e.g., "library_Book").
	ChildTableName string

	// ParentKeyAttr is the reference property on the child (e.g., "author").
	ParentKeyAttr string
}

// Registry holds all known relationships for cascade operations.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
	byChild       map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
		byChild:       make(map[string][]Relationship),
	}
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
	r.byChild[rel.ChildType] = append(r.byChild[rel.ChildType], rel)
}

// RegisterModel adds a relationship for every reference property of m.
// References whose target cannot be resolved yet are an error.
func (r *Registry) RegisterModel(m *model.Model, tableName func(*model.Model) string) error {
	for _, k := range m.References() {
		p, _ := m.Property(k)
		target, err := p.ReferencedModel()
		if err != nil {
			return fmt.Errorf("register %s.%s: %w", m.QualifiedName(), k, err)
		}
		r.Register(Relationship{
			ParentType:     target.QualifiedName(),
			ChildType:      m.QualifiedName(),
			ChildTableName: tableName(m),
			ParentKeyAttr:  k,
		})
	}
	return nil
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// ParentsOf returns all relationships in which childType is the child.
func (r *Registry) ParentsOf(childType string) []Relationship {
	return r.byChild[childType]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}

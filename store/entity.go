package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/model"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Attributes the store manages on every record. They are stripped before
// records are handed back to models.
const (
	attrEntityRef  = "entity_ref"
	attrParentRefs = "parent_refs"
	attrUpdatedAt  = "updated_at"
)

var managedAttrs = []string{attrEntityRef, attrParentRefs, attrUpdatedAt, ttlAttr}

// EntityRef returns the type-qualified reference of a record
// (e.g., "library.Book#42").
func EntityRef(m *model.Model, id any) string {
	return fmt.Sprintf("%s#%v", m.QualifiedName(), id)
}

// ChildRef is a record that references another record, as listed in the
// relationship table.
type ChildRef struct {
	// Ref is the referencing record's entity reference.
	Ref string

	// TableName is the DynamoDB table containing the record.
	TableName string

	// Key is the primary key to locate the record.
	Key PK

	// ShardPK is the relationship table partition key (for TTL updates).
	ShardPK string
}

// key builds the primary key of the record with the given id.
func key(m *model.Model, id any) (PK, error) {
	av, err := attributevalue.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return PK{m.PrimaryKeyName(): av}, nil
}

// unmarshalRecord converts a stored item back into plain record data.
func unmarshalRecord(item map[string]types.AttributeValue) (model.Data, error) {
	trimmed := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		trimmed[k] = v
	}
	for _, k := range managedAttrs {
		delete(trimmed, k)
	}
	var data map[string]interface{}
	if err := attributevalue.UnmarshalMap(trimmed, &data); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return model.Data(data), nil
}

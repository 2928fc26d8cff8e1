package orm

import (
	"context"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/query"
)

// RawResult is one page of records returned by an adapter search.
type RawResult struct {
	// Instances holds plain records.
	Instances []model.Data

	// Page is an adapter-defined token for the next page. Nil means there
	// are no more pages.
	Page any
}

// Adapter stores and retrieves records for a model. Implementations are
// external to this package; see memstore, redisstore and store.
type Adapter interface {
	// Save persists an instance and returns the stored record.
	Save(ctx context.Context, inst *model.Instance) (model.Data, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, m *model.Model, id any) error

	// Retrieve returns the record with the given id, or nil when absent.
	Retrieve(ctx context.Context, m *model.Model, id any) (model.Data, error)

	// Search returns the records matching s.
	Search(ctx context.Context, m *model.Model, s query.Search) (*RawResult, error)
}

// BulkInserter is implemented by adapters that can store many records in
// one round trip.
type BulkInserter interface {
	BulkInsert(ctx context.Context, m *model.Model, insts []*model.Instance) error
}

// BulkDeleter is implemented by adapters that can delete many records in
// one round trip.
type BulkDeleter interface {
	BulkDelete(ctx context.Context, m *model.Model, ids []any) error
}

// Counter is implemented by adapters that can count records without
// reading them.
type Counter interface {
	Count(ctx context.Context, m *model.Model) (int, error)
}

// CreateAndSaver is implemented by adapters with a dedicated create path.
type CreateAndSaver interface {
	CreateAndSave(ctx context.Context, inst *model.Instance) (model.Data, error)
}

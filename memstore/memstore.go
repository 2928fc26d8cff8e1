// Package memstore is an in-process datastore adapter. Records live in one
// ordered B-tree per model, sorted by primary key.
package memstore

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"

	"github.com/jacentio/arbor/internal/filter"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/query"
)

var (
	// ErrMissingID is returned when a record has no primary key value.
	ErrMissingID = errors.New("memstore: record has no primary key")

	// ErrAlreadyExists is returned by CreateAndSave for a taken primary key.
	ErrAlreadyExists = errors.New("memstore: record already exists")

	// ErrInvalidPage is returned for a page token this store did not issue.
	ErrInvalidPage = errors.New("memstore: invalid page token")
)

var (
	_ orm.Adapter        = (*Store)(nil)
	_ orm.BulkInserter   = (*Store)(nil)
	_ orm.BulkDeleter    = (*Store)(nil)
	_ orm.Counter        = (*Store)(nil)
	_ orm.CreateAndSaver = (*Store)(nil)
)

// Config holds configuration for the Store.
type Config struct {
	// PageSize is the number of records per search page when no Take is
	// given.
	// Default: 100
	PageSize int

	// Logger receives debug logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{PageSize: 100}
}

func (c *Config) validate() {
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type entry struct {
	key  pk
	data model.Data
}

func byPrimaryKey(a, b interface{}) bool {
	return a.(*entry).key.less(b.(*entry).key)
}

// Store keeps records in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*btree.BTree
	config Config
}

// New creates an empty store.
func New(config Config) *Store {
	config.validate()
	return &Store{
		tables: make(map[string]*btree.BTree),
		config: config,
	}
}

func (s *Store) table(m *model.Model) *btree.BTree {
	t, ok := s.tables[m.QualifiedName()]
	if !ok {
		t = btree.NewNonConcurrent(byPrimaryKey)
		s.tables[m.QualifiedName()] = t
	}
	return t
}

// clone copies the top level of a record. Nested values come from ToObj
// and are never mutated in place.
func clone(data model.Data) (model.Data, error) {
	out := make(model.Data, len(data))
	if err := copier.Copy(&out, data); err != nil {
		return nil, errors.Wrap(err, "memstore: could not copy record")
	}
	return out, nil
}

func (s *Store) record(ctx context.Context, inst *model.Instance) (*entry, error) {
	data, err := inst.ToObj(ctx)
	if err != nil {
		return nil, err
	}
	m := inst.Model()
	id := data[m.PrimaryKeyName()]
	if id == nil {
		return nil, errors.Wrapf(ErrMissingID, "model %s", m.Name())
	}
	cp, err := clone(data)
	if err != nil {
		return nil, err
	}
	return &entry{key: newPK(id), data: cp}, nil
}

// Save stores the instance, replacing any record with the same key.
func (s *Store) Save(ctx context.Context, inst *model.Instance) (model.Data, error) {
	ent, err := s.record(ctx, inst)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.table(inst.Model()).Set(ent)
	s.mu.Unlock()

	s.config.Logger.Debug("saved record", "model", inst.Model().Name(), "key", ent.key.String())
	return clone(ent.data)
}

// CreateAndSave stores the instance unless a record with its key exists.
func (s *Store) CreateAndSave(ctx context.Context, inst *model.Instance) (model.Data, error) {
	ent, err := s.record(ctx, inst)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	t := s.table(inst.Model())
	if t.Get(ent) != nil {
		s.mu.Unlock()
		return nil, errors.Wrapf(ErrAlreadyExists, "model %s key %s", inst.Model().Name(), ent.key)
	}
	t.Set(ent)
	s.mu.Unlock()

	return clone(ent.data)
}

// Retrieve returns a copy of the record, or nil when absent.
func (s *Store) Retrieve(_ context.Context, m *model.Model, id any) (model.Data, error) {
	s.mu.RLock()
	var found interface{}
	if t, ok := s.tables[m.QualifiedName()]; ok {
		found = t.Get(&entry{key: newPK(id)})
	}
	s.mu.RUnlock()
	if found == nil {
		return nil, nil
	}
	return clone(found.(*entry).data)
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *Store) Delete(_ context.Context, m *model.Model, id any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(m).Delete(&entry{key: newPK(id)})
	return nil
}

// BulkInsert stores every instance under a single lock.
func (s *Store) BulkInsert(ctx context.Context, m *model.Model, insts []*model.Instance) error {
	entries := make([]*entry, 0, len(insts))
	for _, inst := range insts {
		ent, err := s.record(ctx, inst)
		if err != nil {
			return err
		}
		entries = append(entries, ent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(m)
	for _, ent := range entries {
		t.Set(ent)
	}
	return nil
}

// BulkDelete removes every record in ids.
func (s *Store) BulkDelete(_ context.Context, m *model.Model, ids []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(m)
	for _, id := range ids {
		t.Delete(&entry{key: newPK(id)})
	}
	return nil
}

// Count returns the number of records stored for m.
func (s *Store) Count(_ context.Context, m *model.Model) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[m.QualifiedName()]; ok {
		return t.Len(), nil
	}
	return 0, nil
}

// Search filters records in key order, then sorts and pages them. A page
// holds Take results, or PageSize when no Take is given. Page tokens are
// decimal offsets encoded as strings and always point just past the last
// result returned.
func (s *Store) Search(ctx context.Context, m *model.Model, search query.Search) (*orm.RawResult, error) {
	offset, err := pageOffset(search.Page)
	if err != nil {
		return nil, err
	}

	var matched []model.Data
	var iterErr error
	s.mu.RLock()
	t, ok := s.tables[m.QualifiedName()]
	if !ok {
		s.mu.RUnlock()
		return &orm.RawResult{Instances: []model.Data{}}, nil
	}
	t.Ascend(nil, func(item interface{}) bool {
		if iterErr = ctx.Err(); iterErr != nil {
			return false
		}
		data := item.(*entry).data
		ok, err := filter.Match(search.Query, func(key string) (any, bool) {
			v, ok := data[key]
			return v, ok
		})
		if err != nil {
			iterErr = err
			return false
		}
		if ok {
			matched = append(matched, data)
		}
		return true
	})
	s.mu.RUnlock()
	if iterErr != nil {
		return nil, iterErr
	}

	filter.Sort(matched, search.Sort, func(d model.Data, key string) any { return d[key] })

	page, next := filter.Page(matched, offset, filter.Limit(search.Take, s.config.PageSize))
	result := &orm.RawResult{Instances: []model.Data{}}
	if next >= 0 {
		result.Page = strconv.Itoa(next)
	}
	for _, data := range page {
		cp, err := clone(data)
		if err != nil {
			return nil, err
		}
		result.Instances = append(result.Instances, cp)
	}
	return result, nil
}

func pageOffset(page any) (int, error) {
	switch p := page.(type) {
	case nil:
		return 0, nil
	case int:
		if p >= 0 {
			return p, nil
		}
	case string:
		n, err := strconv.Atoi(p)
		if err == nil && n >= 0 {
			return n, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidPage, "%v", page)
}

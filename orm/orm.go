package orm

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/query"
)

// lastModifiedKey marks a property in Config.Extra as the last-modified stamp.
const lastModifiedKey = "arbor.lastModified"

// Options configures an ORM model.
type Options struct {
	// InstanceCreated callbacks run after the ORM installs its methods.
	InstanceCreated []model.InstanceCreated

	// Logger receives debug logs for persistence calls. Default: slog.Default().
	Logger *slog.Logger
}

// Model is a model bound to a datastore adapter. Every instance it creates
// carries "save" and "delete" methods.
type Model struct {
	*model.Model

	adapter      Adapter
	logger       *slog.Logger
	lastModified string
}

// SearchResult is one page of search results.
type SearchResult struct {
	Instances []*model.Instance
	Page      any
}

// New builds a model from def and binds it to adapter.
func New(def model.Definition, adapter Adapter, opts Options) (*Model, error) {
	if adapter == nil {
		return nil, ErrMissingAdapter
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	om := &Model{adapter: adapter, logger: logger}
	callbacks := append([]model.InstanceCreated{om.install}, opts.InstanceCreated...)
	base, err := model.New(def, model.Options{
		InstanceCreated: callbacks,
		Extension:       om,
	})
	if err != nil {
		return nil, err
	}
	om.Model = base

	for _, k := range base.Keys() {
		p, _ := base.Property(k)
		if marked, _ := p.Config().Extra[lastModifiedKey].(bool); marked {
			om.lastModified = k
			break
		}
	}
	return om, nil
}

// Adapter returns the datastore adapter.
func (m *Model) Adapter() Adapter { return m.adapter }

func (m *Model) install(inst *model.Instance) {
	methods := map[string]model.InstanceMethod{
		"save": func(ctx context.Context, inst *model.Instance, _ ...any) (any, error) {
			return m.Save(ctx, inst)
		},
		"delete": func(ctx context.Context, inst *model.Instance, _ ...any) (any, error) {
			return nil, m.Delete(ctx, inst)
		},
	}
	for name, fn := range methods {
		if err := inst.Install(name, fn); err != nil {
			m.logger.Error("failed to install instance method",
				"model", m.Name(),
				"method", name,
				"error", err,
			)
		}
	}
}

// prepare refreshes the last-modified stamp and validates.
func (m *Model) prepare(ctx context.Context, inst *model.Instance) (*model.Instance, error) {
	if m.lastModified != "" {
		data, err := inst.ToObj(ctx)
		if err != nil {
			return nil, err
		}
		fresh := make(model.Data, len(data))
		for k, v := range data {
			fresh[k] = v
		}
		fresh[m.lastModified] = value.FormatTime(time.Now())
		inst = m.Create(fresh)
	}

	errs, err := inst.Validate(ctx, model.ValidationContext{})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, &ValidationError{ModelName: m.Name(), KeysToErrors: errs}
	}
	return inst, nil
}

// Save validates inst and stores it. It returns a new instance built from
// the stored record; inst itself is left unchanged.
func (m *Model) Save(ctx context.Context, inst *model.Instance) (*model.Instance, error) {
	inst, err := m.prepare(ctx, inst)
	if err != nil {
		return nil, err
	}
	data, err := m.adapter.Save(ctx, inst)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("saved instance", "model", m.Name())
	return m.Create(data), nil
}

// CreateAndSave creates an instance from data and stores it, preferring
// the adapter's dedicated create path.
func (m *Model) CreateAndSave(ctx context.Context, data model.Data) (*model.Instance, error) {
	creator, ok := m.adapter.(CreateAndSaver)
	if !ok {
		return m.Save(ctx, m.Create(data))
	}
	inst, err := m.prepare(ctx, m.Create(data))
	if err != nil {
		return nil, err
	}
	stored, err := creator.CreateAndSave(ctx, inst)
	if err != nil {
		return nil, err
	}
	return m.Create(stored), nil
}

// Delete removes the stored record of inst.
func (m *Model) Delete(ctx context.Context, inst *model.Instance) error {
	id, err := inst.PrimaryKey(ctx)
	if err != nil {
		return err
	}
	if err := m.adapter.Delete(ctx, m.Model, id); err != nil {
		return err
	}
	m.logger.Debug("deleted instance", "model", m.Name(), "id", id)
	return nil
}

// Retrieve loads the record with the given id. It returns nil, nil when
// no such record exists.
func (m *Model) Retrieve(ctx context.Context, id any) (*model.Instance, error) {
	data, err := m.adapter.Retrieve(ctx, m.Model, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return m.Create(data), nil
}

// Search runs s through the adapter and wraps the records as instances.
func (m *Model) Search(ctx context.Context, s query.Search) (*SearchResult, error) {
	raw, err := m.adapter.Search(ctx, m.Model, s)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Instances: []*model.Instance{}}
	if raw == nil {
		return result, nil
	}
	for _, data := range raw.Instances {
		result.Instances = append(result.Instances, m.Create(data))
	}
	result.Page = raw.Page
	return result, nil
}

// SearchOne runs s limited to one result and returns it, or nil.
func (m *Model) SearchOne(ctx context.Context, s query.Search) (*model.Instance, error) {
	one := 1
	s.Take = &one
	result, err := m.Search(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(result.Instances) == 0 {
		return nil, nil
	}
	return result.Instances[0], nil
}

// BulkInsert validates every instance and then stores them all. Nothing is
// stored if any instance is invalid.
func (m *Model) BulkInsert(ctx context.Context, insts []*model.Instance) error {
	prepared := make([]*model.Instance, len(insts))
	for i, inst := range insts {
		p, err := m.prepare(ctx, inst)
		if err != nil {
			return err
		}
		prepared[i] = p
	}

	if bulk, ok := m.adapter.(BulkInserter); ok {
		return bulk.BulkInsert(ctx, m.Model, prepared)
	}
	for _, inst := range prepared {
		if _, err := m.adapter.Save(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// BulkDelete removes the records with the given ids.
func (m *Model) BulkDelete(ctx context.Context, ids []any) error {
	if bulk, ok := m.adapter.(BulkDeleter); ok {
		return bulk.BulkDelete(ctx, m.Model, ids)
	}
	for _, id := range ids {
		if err := m.adapter.Delete(ctx, m.Model, id); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored records. Without a Counter adapter it
// pages through an unfiltered search, stopping when the adapter returns no
// page token or repeats the token it was given.
func (m *Model) Count(ctx context.Context) (int, error) {
	if counter, ok := m.adapter.(Counter); ok {
		return counter.Count(ctx, m.Model)
	}

	total := 0
	var page any
	for {
		raw, err := m.adapter.Search(ctx, m.Model, query.Search{Query: []query.Token{}, Page: page})
		if err != nil {
			return 0, err
		}
		if raw == nil {
			return total, nil
		}
		total += len(raw.Instances)
		if raw.Page == nil || reflect.DeepEqual(raw.Page, page) {
			return total, nil
		}
		page = raw.Page
	}
}

// Fetch is a model.Fetcher that loads referenced records through the
// target model's adapter. Targets not built by New resolve to nothing.
func Fetch(ctx context.Context, target *model.Model, id any) (any, error) {
	om, ok := target.Extension().(*Model)
	if !ok {
		return nil, nil
	}
	inst, err := om.Retrieve(ctx, id)
	if err != nil || inst == nil {
		return nil, err
	}
	return inst, nil
}

// LastModifiedDate is a date property that Save stamps with the current
// time before validating.
func LastModifiedDate(cfg model.Config) (*model.Property, error) {
	extra := make(map[string]any, len(cfg.Extra)+1)
	for k, v := range cfg.Extra {
		extra[k] = v
	}
	extra[lastModifiedKey] = true
	cfg.Extra = extra
	cfg.AutoNow = true
	return model.Date(cfg)
}

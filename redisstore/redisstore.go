// Package redisstore is a Redis datastore adapter.
//
// Each record is stored as a JSON string at {prefix}:{model}:record:{id}.
// The ids of a model live in a set sharded across NumShards keys, so large
// models do not concentrate on one key. Searches walk the sorted id list a
// page at a time and filter the page in process.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"

	"github.com/jacentio/arbor/internal/filter"
	"github.com/jacentio/arbor/internal/shard"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/query"
)

var (
	// ErrMissingID is returned when a record has no primary key value.
	ErrMissingID = errors.New("arbor: record has no primary key")

	// ErrAlreadyExists is returned by CreateAndSave for a taken primary key.
	ErrAlreadyExists = errors.New("arbor: record already exists")

	// ErrInvalidPage is returned for a page token this store did not issue.
	ErrInvalidPage = errors.New("arbor: invalid page token")

	// ErrCorruptRecord is returned when a stored value is not a JSON object.
	ErrCorruptRecord = errors.New("arbor: stored record is not a JSON object")
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
	// Prefix namespaces every key.
	// Default: "arbor"
	Prefix string

	// NumShards is the number of sets a model's ids are spread across.
	// Default: 1, Max: 256
	NumShards int

	// PageSize is the number of records read per round trip and the
	// number of results a search page holds when no Take is given.
	// Default: 100
	PageSize int

	// Logger receives debug logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		Prefix:    "arbor",
		NumShards: 1,
		PageSize:  100,
	}
}

func (c *Config) validate() {
	if c.Prefix == "" {
		c.Prefix = "arbor"
	}
	c.NumShards = shard.Clamp(c.NumShards)
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store keeps records in Redis. It is safe for concurrent use.
type Store struct {
	rdb    *redis.Client
	config Config
}

// New creates a store on an existing client.
func New(rdb *redis.Client, config Config) *Store {
	config.validate()
	return &Store{rdb: rdb, config: config}
}

// NewClient connects to Redis with opts and creates a store.
func NewClient(opts *redis.Options, config Config) *Store {
	return New(redis.NewClient(opts), config)
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// encode serializes inst and returns its id and JSON record.
func (s *Store) encode(ctx context.Context, inst *model.Instance) (string, []byte, model.Data, error) {
	data, err := inst.ToObj(ctx)
	if err != nil {
		return "", nil, nil, err
	}
	m := inst.Model()
	id := data[m.PrimaryKeyName()]
	if id == nil {
		return "", nil, nil, fmt.Errorf("%w: model %s", ErrMissingID, m.Name())
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to serialize record: %w", err)
	}
	return idString(id), raw, data, nil
}

// decode parses a stored record.
func decode(raw []byte) (model.Data, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrCorruptRecord
	}
	obj, ok := gjson.ParseBytes(raw).Value().(map[string]interface{})
	if !ok {
		return nil, ErrCorruptRecord
	}
	return model.Data(obj), nil
}

// Save writes the record and indexes its id in one transaction.
func (s *Store) Save(ctx context.Context, inst *model.Instance) (model.Data, error) {
	id, raw, data, err := s.encode(ctx, inst)
	if err != nil {
		return nil, err
	}
	m := inst.Model()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(m, id), raw, 0)
		pipe.SAdd(ctx, s.idSetKey(m, id), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write record to Redis: %w", err)
	}
	s.config.Logger.Debug("saved record", "model", m.Name(), "id", id)
	return data, nil
}

// CreateAndSave writes the record only if no record with its id exists.
func (s *Store) CreateAndSave(ctx context.Context, inst *model.Instance) (model.Data, error) {
	id, raw, data, err := s.encode(ctx, inst)
	if err != nil {
		return nil, err
	}
	m := inst.Model()
	created, err := s.rdb.SetNX(ctx, s.recordKey(m, id), raw, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to write record to Redis: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: model %s id %s", ErrAlreadyExists, m.Name(), id)
	}
	if err := s.rdb.SAdd(ctx, s.idSetKey(m, id), id).Err(); err != nil {
		return nil, fmt.Errorf("failed to index record: %w", err)
	}
	return data, nil
}

// Retrieve returns the record, or nil when absent.
func (s *Store) Retrieve(ctx context.Context, m *model.Model, id any) (model.Data, error) {
	raw, err := s.rdb.Get(ctx, s.recordKey(m, idString(id))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record from Redis: %w", err)
	}
	return decode(raw)
}

// Delete removes the record and its index entry. Deleting a missing
// record is not an error.
func (s *Store) Delete(ctx context.Context, m *model.Model, id any) error {
	return s.BulkDelete(ctx, m, []any{id})
}

// BulkInsert writes every instance in one pipeline.
func (s *Store) BulkInsert(ctx context.Context, m *model.Model, insts []*model.Instance) error {
	type encoded struct {
		id  string
		raw []byte
	}
	records := make([]encoded, 0, len(insts))
	for _, inst := range insts {
		id, raw, _, err := s.encode(ctx, inst)
		if err != nil {
			return err
		}
		records = append(records, encoded{id: id, raw: raw})
	}

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.Set(ctx, s.recordKey(m, r.id), r.raw, 0)
			pipe.SAdd(ctx, s.idSetKey(m, r.id), r.id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write records to Redis: %w", err)
	}
	s.config.Logger.Debug("bulk inserted records", "model", m.Name(), "count", len(records))
	return nil
}

// BulkDelete removes every record in ids in one transaction.
func (s *Store) BulkDelete(ctx context.Context, m *model.Model, ids []any) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range ids {
			id := idString(v)
			pipe.Del(ctx, s.recordKey(m, id))
			pipe.SRem(ctx, s.idSetKey(m, id), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete records from Redis: %w", err)
	}
	return nil
}

// Count sums the cardinality of every id set shard.
func (s *Store) Count(ctx context.Context, m *model.Model) (int, error) {
	keys := s.idSetKeys(m)
	cmds := make([]*redis.IntCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.SCard(ctx, k)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	total := 0
	for _, cmd := range cmds {
		total += int(cmd.Val())
	}
	return total, nil
}

// ids returns every id of the model in sorted order.
func (s *Store) ids(ctx context.Context, m *model.Model) ([]string, error) {
	keys := s.idSetKeys(m)
	cmds := make([]*redis.StringSliceCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.SMembers(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}
	var ids []string
	for _, cmd := range cmds {
		ids = append(ids, cmd.Val()...)
	}
	sort.Strings(ids)
	return ids, nil
}

// Search returns the records matching the query. Unsorted searches read
// ids in PageSize batches until Take (or PageSize) matches are found, and
// their page token is the offset of the first id not yet examined. Sorted
// searches read every record of the model; their page token is an offset
// into the sorted matches.
func (s *Store) Search(ctx context.Context, m *model.Model, search query.Search) (*orm.RawResult, error) {
	offset, err := pageOffset(search.Page)
	if err != nil {
		return nil, err
	}
	ids, err := s.ids(ctx, m)
	if err != nil {
		return nil, err
	}
	limit := filter.Limit(search.Take, s.config.PageSize)

	result := &orm.RawResult{Instances: []model.Data{}}
	if search.Sort != nil {
		matched, _, err := s.match(ctx, m, ids, search.Query, -1)
		if err != nil {
			return nil, err
		}
		filter.Sort(matched, search.Sort, func(d model.Data, key string) any { return d[key] })
		page, next := filter.Page(matched, offset, limit)
		result.Instances = append(result.Instances, page...)
		if next >= 0 {
			result.Page = strconv.Itoa(next)
		}
		return result, nil
	}

	if offset >= len(ids) {
		return result, nil
	}
	matched, examined, err := s.match(ctx, m, ids[offset:], search.Query, limit)
	if err != nil {
		return nil, err
	}
	result.Instances = append(result.Instances, matched...)
	if next := offset + examined; next < len(ids) {
		result.Page = strconv.Itoa(next)
	}
	return result, nil
}

// match reads the records behind ids in PageSize batches and returns those
// satisfying tokens, stopping once limit have matched. A negative limit
// reads every id. examined counts the ids consumed.
func (s *Store) match(ctx context.Context, m *model.Model, ids []string, tokens []query.Token, limit int) ([]model.Data, int, error) {
	var matched []model.Data
	examined := 0
	for examined < len(ids) {
		end := examined + s.config.PageSize
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]string, 0, end-examined)
		for _, id := range ids[examined:end] {
			keys = append(keys, s.recordKey(m, id))
		}
		values, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read records from Redis: %w", err)
		}

		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				// Deleted between listing and reading.
				continue
			}
			raw := []byte(str)
			hit, err := filter.Match(tokens, lookup(raw))
			if err != nil {
				return nil, 0, err
			}
			if !hit {
				continue
			}
			data, err := decode(raw)
			if err != nil {
				return nil, 0, err
			}
			matched = append(matched, data)
			if limit >= 0 && len(matched) >= limit {
				return matched, examined + i + 1, nil
			}
		}
		s.config.Logger.Debug("examined search batch", "model", m.Name(), "ids", end-examined, "matched", len(matched))
		examined = end
	}
	return matched, examined, nil
}

// lookup reads top-level fields straight from the JSON text.
func lookup(raw []byte) filter.Lookup {
	return func(key string) (any, bool) {
		r := gjson.GetBytes(raw, escapePath(key))
		if !r.Exists() {
			return nil, false
		}
		return r.Value(), true
	}
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

// escapePath turns a property name into a literal gjson path.
func escapePath(key string) string {
	return pathEscaper.Replace(key)
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
	return 0, fmt.Errorf("%w: %v", ErrInvalidPage, page)
}

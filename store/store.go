package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/arbor/internal/filter"
	"github.com/jacentio/arbor/internal/shard"
	"github.com/jacentio/arbor/internal/value"
	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/query"
)

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// maxBatchAttempts bounds retries of unprocessed batch items.
const maxBatchAttempts = 5

var (
	_ orm.Adapter        = (*Store)(nil)
	_ orm.BulkInserter   = (*Store)(nil)
	_ orm.BulkDeleter    = (*Store)(nil)
	_ orm.Counter        = (*Store)(nil)
	_ orm.CreateAndSaver = (*Store)(nil)
)

// Store is a DynamoDB datastore adapter with reference tracking.
type Store struct {
	client   API
	config   Config
	registry *Registry
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewWithRegistry creates a new Store instance with a relationship registry.
func NewWithRegistry(client API, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// SetRegistry sets the relationship registry for cascade operations.
func (s *Store) SetRegistry(registry *Registry) {
	s.registry = registry
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Register records the reference properties of models in the store's
// registry, creating it if needed.
func (s *Store) Register(models ...*model.Model) error {
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	for _, m := range models {
		if err := s.registry.RegisterModel(m, s.config.TableName); err != nil {
			return err
		}
	}
	return nil
}

// TableName returns the DynamoDB table that holds m's records.
func (s *Store) TableName(m *model.Model) string {
	return s.config.TableName(m)
}

// relationshipPK computes the sharded partition key for a relationship record.
func (s *Store) relationshipPK(parentRef, childRef string) string {
	return shard.Key(parentRef, childRef, s.config.NumShards)
}

// parent is one record referenced by the record being written.
type parent struct {
	model *model.Model
	id    any
	ref   string
}

// parents returns the distinct records inst references.
func (s *Store) parents(ctx context.Context, inst *model.Instance) ([]parent, error) {
	var out []parent
	seen := map[string]bool{}
	m := inst.Model()
	for _, k := range m.References() {
		id, err := inst.ReferencedID(ctx, k)
		if err != nil {
			return nil, err
		}
		if id == nil {
			continue
		}
		p, _ := m.Property(k)
		target, err := p.ReferencedModel()
		if err != nil {
			return nil, err
		}
		ref := EntityRef(target, id)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, parent{model: target, id: id, ref: ref})
	}
	return out, nil
}

// record is a marshaled record ready to write.
type record struct {
	id      any
	ref     string
	key     PK
	item    map[string]types.AttributeValue
	data    model.Data
	parents []parent
}

func (s *Store) marshal(ctx context.Context, inst *model.Instance) (*record, error) {
	m := inst.Model()
	data, err := inst.ToObj(ctx)
	if err != nil {
		return nil, err
	}
	id := data[m.PrimaryKeyName()]
	if id == nil {
		return nil, fmt.Errorf("%w: model %s", ErrMissingID, m.Name())
	}
	item, err := attributevalue.MarshalMap(map[string]interface{}(data))
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	k, err := key(m, id)
	if err != nil {
		return nil, err
	}
	parents, err := s.parents(ctx, inst)
	if err != nil {
		return nil, err
	}

	rec := &record{id: id, ref: EntityRef(m, id), key: k, item: item, data: data, parents: parents}
	item[attrEntityRef] = &types.AttributeValueMemberS{Value: rec.ref}
	item[attrUpdatedAt] = &types.AttributeValueMemberS{Value: value.FormatTime(time.Now())}
	if len(parents) > 0 {
		refs := make([]string, len(parents))
		for i, p := range parents {
			refs[i] = p.ref
		}
		item[attrParentRefs] = &types.AttributeValueMemberSS{Value: refs}
	}
	return rec, nil
}

// relationshipItem is the relationship table row linking rec to p.
func (s *Store) relationshipItem(m *model.Model, rec *record, p parent) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":          &types.AttributeValueMemberS{Value: s.relationshipPK(p.ref, rec.ref)},
		"child_ref":   &types.AttributeValueMemberS{Value: rec.ref},
		"parent_ref":  &types.AttributeValueMemberS{Value: p.ref},
		"child_table": &types.AttributeValueMemberS{Value: s.TableName(m)},
		"child_key":   &types.AttributeValueMemberM{Value: rec.key},
	}
}

// Save writes the record with reference validation and relationship
// records in one transaction. Relationship records the previous version
// held but this one does not are removed.
func (s *Store) Save(ctx context.Context, inst *model.Instance) (model.Data, error) {
	return s.put(ctx, inst, false)
}

// CreateAndSave is Save that fails with ErrAlreadyExists when a record
// with the same key exists.
func (s *Store) CreateAndSave(ctx context.Context, inst *model.Instance) (model.Data, error) {
	return s.put(ctx, inst, true)
}

func (s *Store) put(ctx context.Context, inst *model.Instance, create bool) (model.Data, error) {
	m := inst.Model()
	rec, err := s.marshal(ctx, inst)
	if err != nil {
		return nil, err
	}

	var stale []string
	if !create {
		if stale, err = s.staleParents(ctx, m, rec); err != nil {
			return nil, err
		}
	}

	items := []types.TransactWriteItem{}
	checks := map[int]string{}

	// 1. Reference checks
	if s.config.CheckReferences {
		for _, p := range rec.parents {
			if p.ref == rec.ref {
				continue
			}
			pk, err := key(p.model, p.id)
			if err != nil {
				return nil, err
			}
			checks[len(items)] = p.ref
			items = append(items, types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 aws.String(s.TableName(p.model)),
					Key:                       pk,
					ConditionExpression:       aws.String(ReferenceExistsCondition()),
					ExpressionAttributeNames:  mergeExprNames(TTLFilterNames(), map[string]string{"#pk": p.model.PrimaryKeyName()}),
					ExpressionAttributeValues: TTLFilterValues(),
				},
			})
		}
	}

	// 2. The record itself
	put := &types.Put{
		TableName: aws.String(s.TableName(m)),
		Item:      rec.item,
	}
	if create {
		put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
		put.ExpressionAttributeNames = map[string]string{"#pk": m.PrimaryKeyName()}
	} else {
		put.ConditionExpression = aws.String("attribute_not_exists(#ttl)")
		put.ExpressionAttributeNames = TTLFilterNames()
	}
	putIndex := len(items)
	items = append(items, types.TransactWriteItem{Put: put})

	// 3. Relationship records
	for _, p := range rec.parents {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.RelationshipTable),
				Item:      s.relationshipItem(m, rec, p),
			},
		})
	}
	for _, ref := range stale {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.config.RelationshipTable),
				Key: map[string]types.AttributeValue{
					"pk":        &types.AttributeValueMemberS{Value: s.relationshipPK(ref, rec.ref)},
					"child_ref": &types.AttributeValueMemberS{Value: rec.ref},
				},
			},
		})
	}

	// 4. Execute transaction
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := mapPutError(err, checks, putIndex, create); err != nil {
		return nil, err
	}

	s.config.Logger.Debug("saved record",
		"model", m.Name(),
		"ref", rec.ref,
		"references", len(rec.parents),
	)
	return rec.data, nil
}

// staleParents returns the parent refs the stored version of rec holds
// that rec no longer does.
func (s *Store) staleParents(ctx context.Context, m *model.Model, rec *record) ([]string, error) {
	if len(m.References()) == 0 {
		return nil, nil
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.TableName(m)),
		Key:                      rec.key,
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#pr"),
		ExpressionAttributeNames: map[string]string{"#pr": attrParentRefs},
	})
	if err != nil {
		return nil, err
	}
	old, ok := out.Item[attrParentRefs].(*types.AttributeValueMemberSS)
	if !ok {
		return nil, nil
	}
	current := map[string]bool{}
	for _, p := range rec.parents {
		current[p.ref] = true
	}
	var stale []string
	for _, ref := range old.Value {
		if !current[ref] {
			stale = append(stale, ref)
		}
	}
	return stale, nil
}

// Retrieve returns the record, or nil when it is missing or deleted.
func (s *Store) Retrieve(ctx context.Context, m *model.Model, id any) (model.Data, error) {
	k, err := key(m, id)
	if err != nil {
		return nil, err
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName(m)),
		Key:       k,
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, nil
	}
	return unmarshalRecord(result.Item)
}

// Delete marks the record for deletion by setting its TTL. Records that
// reference it are soft-deleted by the stream handler. With OrphanProtect
// the delete fails while active records reference it.
func (s *Store) Delete(ctx context.Context, m *model.Model, id any) error {
	ref := EntityRef(m, id)
	if s.config.OrphanProtect && (s.registry == nil || s.registry.HasChildren(m.QualifiedName())) {
		hasChildren, err := s.HasActiveChildren(ctx, ref)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: %s", ErrHasReferences, ref)
		}
	}

	k, err := key(m, id)
	if err != nil {
		return err
	}
	if err := s.SetTTLByKey(ctx, s.TableName(m), k, time.Now().Unix()); err != nil {
		return err
	}
	s.config.Logger.Debug("marked record for deletion", "model", m.Name(), "ref", ref)
	return nil
}

// BulkDelete deletes every record in ids concurrently.
func (s *Store) BulkDelete(ctx context.Context, m *model.Model, ids []any) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return s.Delete(ctx, m, id)
		})
	}
	return g.Wait()
}

// BulkInsert writes records and their relationship rows with
// BatchWriteItem. Reference checks and stale relationship cleanup are
// skipped.
func (s *Store) BulkInsert(ctx context.Context, m *model.Model, insts []*model.Instance) error {
	type write struct {
		table string
		req   types.WriteRequest
	}
	table := s.TableName(m)
	var writes []write
	for _, inst := range insts {
		rec, err := s.marshal(ctx, inst)
		if err != nil {
			return err
		}
		writes = append(writes, write{table, types.WriteRequest{PutRequest: &types.PutRequest{Item: rec.item}}})
		for _, p := range rec.parents {
			writes = append(writes, write{
				s.config.RelationshipTable,
				types.WriteRequest{PutRequest: &types.PutRequest{Item: s.relationshipItem(m, rec, p)}},
			})
		}
	}

	for start := 0; start < len(writes); start += batchSize {
		end := start + batchSize
		if end > len(writes) {
			end = len(writes)
		}
		chunk := map[string][]types.WriteRequest{}
		for _, w := range writes[start:end] {
			chunk[w.table] = append(chunk[w.table], w.req)
		}
		if err := s.batchWrite(ctx, chunk); err != nil {
			return err
		}
	}

	s.config.Logger.Debug("bulk inserted records", "model", m.Name(), "count", len(insts))
	return nil
}

func (s *Store) batchWrite(ctx context.Context, chunk map[string][]types.WriteRequest) error {
	for attempt := 0; attempt < maxBatchAttempts; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: chunk})
		if err != nil {
			return err
		}
		if len(out.UnprocessedItems) == 0 {
			return nil
		}
		chunk = out.UnprocessedItems
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return ErrUnprocessedItems
}

// Search scans the model's table, filtered by the compiled query and the
// TTL filter, and re-checks every item in process. Unsorted searches
// follow LastEvaluatedKey until Take (or PageSize) matches are found; their
// page token is the key of the last item examined, as plain data. Sorted
// searches read every match before sorting; their page tokens are offsets
// into the sorted matches.
func (s *Store) Search(ctx context.Context, m *model.Model, search query.Search) (*orm.RawResult, error) {
	limit := filter.Limit(search.Take, int(s.config.PageSize))
	if search.Sort != nil {
		return s.sortedSearch(ctx, m, search, limit)
	}

	start, err := decodePage(search.Page)
	if err != nil {
		return nil, err
	}
	result := &orm.RawResult{Instances: []model.Data{}}
	next, err := s.scan(ctx, m, search.Query, start, func(data model.Data) bool {
		result.Instances = append(result.Instances, data)
		return len(result.Instances) < limit
	})
	if err != nil {
		return nil, err
	}
	if next != nil {
		if result.Page, err = encodePage(next); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) sortedSearch(ctx context.Context, m *model.Model, search query.Search, limit int) (*orm.RawResult, error) {
	offset, err := pageOffset(search.Page)
	if err != nil {
		return nil, err
	}
	var matched []model.Data
	if _, err := s.scan(ctx, m, search.Query, nil, func(data model.Data) bool {
		matched = append(matched, data)
		return true
	}); err != nil {
		return nil, err
	}
	filter.Sort(matched, search.Sort, func(d model.Data, key string) any { return d[key] })

	page, next := filter.Page(matched, offset, limit)
	result := &orm.RawResult{Instances: append([]model.Data{}, page...)}
	if next >= 0 {
		result.Page = next
	}
	return result, nil
}

// scan reads Scan pages from start and passes each active item matching
// tokens to visit until visit returns false or the table is exhausted. It
// returns the key to resume after the last item examined, or nil when no
// items remain.
func (s *Store) scan(ctx context.Context, m *model.Model, tokens []query.Token, start PK, visit func(model.Data) bool) (PK, error) {
	f, err := CompileFilter(m, tokens)
	if err != nil {
		return nil, err
	}
	filterExpr := TTLFilterExpr()
	if f.Expression != "" {
		filterExpr = fmt.Sprintf("(%s) AND %s", f.Expression, filterExpr)
	}
	exact := caseSensitive(tokens)
	pk := m.PrimaryKeyName()

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.TableName(m)),
			FilterExpression:          aws.String(filterExpr),
			ExpressionAttributeNames:  mergeExprNames(TTLFilterNames(), f.Names),
			ExpressionAttributeValues: mergeExprValues(TTLFilterValues(), f.Values),
			Limit:                     aws.Int32(s.config.PageSize),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}

		stopped := false
		for i, item := range out.Items {
			data, err := unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			ok, err := filter.Match(exact, func(key string) (any, bool) {
				v, ok := data[key]
				return v, ok
			})
			if err != nil {
				return nil, err
			}
			if !ok || visit(data) {
				continue
			}
			if i < len(out.Items)-1 {
				return PK{pk: item[pk]}, nil
			}
			stopped = true
			break
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		if stopped {
			return out.LastEvaluatedKey, nil
		}
		start = out.LastEvaluatedKey
	}
}

// Count counts active records with a paginated COUNT scan.
func (s *Store) Count(ctx context.Context, m *model.Model) (int, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.TableName(m)),
		Select:                    types.SelectCount,
		FilterExpression:          aws.String(TTLFilterExpr()),
		ExpressionAttributeNames:  TTLFilterNames(),
		ExpressionAttributeValues: TTLFilterValues(),
	})
	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

func encodePage(lek map[string]types.AttributeValue) (map[string]interface{}, error) {
	var page map[string]interface{}
	if err := attributevalue.UnmarshalMap(lek, &page); err != nil {
		return nil, fmt.Errorf("encode page token: %w", err)
	}
	return page, nil
}

// pageOffset reads a sorted search token. Tokens that went through JSON
// arrive as float64.
func pageOffset(page any) (int, error) {
	switch p := page.(type) {
	case nil:
		return 0, nil
	case int:
		if p >= 0 {
			return p, nil
		}
	case float64:
		if p >= 0 && p == math.Trunc(p) {
			return int(p), nil
		}
	case string:
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidPage, page)
}

func decodePage(page any) (map[string]types.AttributeValue, error) {
	var raw map[string]interface{}
	switch p := page.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		raw = p
	case model.Data:
		raw = p
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidPage, page)
	}
	start, err := attributevalue.MarshalMap(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}
	return start, nil
}

// mapPutError maps DynamoDB transaction errors for Save and CreateAndSave.
// checks maps item indices of reference checks to the referenced record.
func mapPutError(err error, checks map[int]string, putIndex int, create bool) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if ref, ok := checks[i]; ok {
				return fmt.Errorf("%w: %s", ErrReferenceNotFound, ref)
			}
			if i == putIndex {
				if create {
					return ErrAlreadyExists
				}
				return ErrAlreadyDeleted
			}
		}
	}

	return err
}

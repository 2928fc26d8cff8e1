package store_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/model"
	"github.com/jacentio/arbor/store"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB client. It stores
// items written through transactions and batches, records every request,
// and serves canned Scan and Query responses.
type fakeDynamo struct {
	mu sync.Mutex

	items map[string]map[string]map[string]types.AttributeValue

	transacts []*dynamodb.TransactWriteItemsInput
	updates   []*dynamodb.UpdateItemInput
	scans     []*dynamodb.ScanInput
	batches   []*dynamodb.BatchWriteItemInput
	queries   []*dynamodb.QueryInput

	scanPages   []*dynamodb.ScanOutput
	queryItems  map[string][]map[string]types.AttributeValue
	txErr       error
	unprocessed int
}

var _ store.API = (*fakeDynamo)(nil)

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items:      map[string]map[string]map[string]types.AttributeValue{},
		queryItems: map[string][]map[string]types.AttributeValue{},
	}
}

func keyString(key map[string]types.AttributeValue) string {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	var out string
	for _, name := range names {
		switch av := key[name].(type) {
		case *types.AttributeValueMemberS:
			out += name + "=" + av.Value + ";"
		case *types.AttributeValueMemberN:
			out += name + "=" + av.Value + ";"
		}
	}
	return out
}

func (f *fakeDynamo) put(table string, keyAttrs []string, item map[string]types.AttributeValue) {
	key := map[string]types.AttributeValue{}
	for _, k := range keyAttrs {
		if v, ok := item[k]; ok {
			key[k] = v
		}
	}
	if f.items[table] == nil {
		f.items[table] = map[string]map[string]types.AttributeValue{}
	}
	f.items[table][keyString(key)] = item
}

// seed stores item directly under the given key attribute.
func (f *fakeDynamo) seed(table, keyAttr string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(table, []string{keyAttr}, item)
}

func (f *fakeDynamo) get(table string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[table][keyString(key)]
}

func keyAttrsFor(table string) []string {
	if table == "arbor_relationships" {
		return []string{"pk", "child_ref"}
	}
	return []string{"id"}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.get(aws.ToString(in.TableName), in.Key)}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)

	item, ok := f.items[aws.ToString(in.TableName)][keyString(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	if _, deleted := item["ttl"]; deleted {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("already deleted")}
	}
	item["ttl"] = in.ExpressionAttributeValues[":ttl"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.QueryOutput{Items: f.queryItems[pk]}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)
	if len(f.scanPages) == 0 {
		return &dynamodb.ScanOutput{}, nil
	}
	page := f.scanPages[0]
	f.scanPages = f.scanPages[1:]
	return page, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts = append(f.transacts, in)
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			table := aws.ToString(it.Put.TableName)
			f.put(table, keyAttrsFor(table), it.Put.Item)
		case it.Delete != nil:
			delete(f.items[aws.ToString(it.Delete.TableName)], keyString(it.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, in)
	if f.unprocessed > 0 {
		f.unprocessed--
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
	}
	for table, reqs := range in.RequestItems {
		for _, r := range reqs {
			f.put(table, keyAttrsFor(table), r.PutRequest.Item)
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// libraryModels returns an Author model and a Book model referencing it.
func libraryModels(t *testing.T) (*model.Model, *model.Model) {
	t.Helper()
	author, err := model.New(model.Definition{
		Name:      "Author",
		Namespace: "library",
		Properties: map[string]*model.Property{
			"name": model.MustProperty(model.NewProperty(model.TypeText, model.Config{})),
		},
	}, model.Options{})
	if err != nil {
		t.Fatalf("author model: %v", err)
	}
	book, err := model.New(model.Definition{
		Name:      "Book",
		Namespace: "library",
		Properties: map[string]*model.Property{
			"title":  model.MustProperty(model.NewProperty(model.TypeText, model.Config{})),
			"pages":  model.MustProperty(model.NewProperty(model.TypeInteger, model.Config{})),
			"tags":   model.MustProperty(model.Array(model.Config{})),
			"author": model.MustProperty(model.Reference(model.RefTo(author), model.Config{})),
		},
	}, model.Options{})
	if err != nil {
		t.Fatalf("book model: %v", err)
	}
	return author, book
}

func strAV(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

func numAV(v int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: fmt.Sprint(v)}
}

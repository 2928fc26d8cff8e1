package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/arbor/internal/shard"
)

// errFound stops the shard fan-out once any shard has an active child.
var errFound = errors.New("found")

// HasActiveChildren checks if any active (non-deleted) record references entityRef.
func (s *Store) HasActiveChildren(ctx context.Context, entityRef string) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, shardPK := range shard.Keys(entityRef, s.config.NumShards) {
		shardPK := shardPK
		g.Go(func() error {
			result, err := s.client.Query(gctx, &dynamodb.QueryInput{
				TableName:                 aws.String(s.config.RelationshipTable),
				KeyConditionExpression:    aws.String("pk = :pk"),
				FilterExpression:          aws.String(TTLFilterExpr()),
				ExpressionAttributeNames:  TTLFilterNames(),
				ExpressionAttributeValues: mergeExprValues(TTLFilterValues(), map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: shardPK}}),
				Limit:                     aws.Int32(1),
			})
			if err != nil {
				return err
			}
			if len(result.Items) > 0 {
				return errFound
			}
			return nil
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errFound):
		return true, nil
	case err != nil:
		return false, err
	}
	return false, nil
}

// QueryAllChildren returns every record that references parentRef,
// including deleted ones. Cascade delete uses it to propagate TTL.
func (s *Store) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	var mu sync.Mutex
	var all []ChildRef

	g, gctx := errgroup.WithContext(ctx)
	for _, shardPK := range shard.Keys(parentRef, s.config.NumShards) {
		shardPK := shardPK
		g.Go(func() error {
			var children []ChildRef
			paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
				TableName:              aws.String(s.config.RelationshipTable),
				KeyConditionExpression: aws.String("pk = :pk"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk": &types.AttributeValueMemberS{Value: shardPK},
				},
			})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(gctx)
				if err != nil {
					return fmt.Errorf("shard %s: %w", shardPK, err)
				}
				for _, item := range page.Items {
					children = append(children, unmarshalChildRef(item, shardPK))
				}
			}

			mu.Lock()
			all = append(all, children...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Ref < all[j].Ref })
	return all, nil
}

// SetTTLByKey marks a record for deletion at ttl. Records that are
// missing or already marked are left alone.
func (s *Store) SetTTLByKey(ctx context.Context, table string, key PK, ttl int64) error {
	return s.setTTL(ctx, table, key, ttl, "", "")
}

// SetChildTTL marks a referencing record for deletion at ttl, provided it
// still references parentRef.
func (s *Store) SetChildTTL(ctx context.Context, child ChildRef, parentRef string, ttl int64) error {
	return s.setTTL(ctx, child.TableName, child.Key, ttl, "contains(#parent_refs, :parent)", parentRef)
}

func (s *Store) setTTL(ctx context.Context, table string, key PK, ttl int64, extraCond, parentRef string) error {
	names := map[string]string{"#ttl": ttlAttr}
	cond := "attribute_not_exists(#ttl)"
	for attr := range key {
		names["#pk"] = attr
		cond = "attribute_exists(#pk) AND " + cond
		break
	}
	values := map[string]types.AttributeValue{":ttl": unixNumber(ttl)}
	if extraCond != "" {
		cond += " AND " + extraCond
		names["#parent_refs"] = attrParentRefs
		values[":parent"] = &types.AttributeValueMemberS{Value: parentRef}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})

	// Ignore condition failure - missing, already deleted, or no longer referencing
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// SetRelationshipTTL sets TTL on a relationship record.
func (s *Store) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.RelationshipTable),
		Key: map[string]types.AttributeValue{
			"pk":        &types.AttributeValueMemberS{Value: s.relationshipPK(parentRef, childRef)},
			"child_ref": &types.AttributeValueMemberS{Value: childRef},
		},
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String("attribute_exists(child_ref) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  map[string]string{"#ttl": ttlAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":ttl": unixNumber(ttl)},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// unmarshalChildRef converts a relationship item to a ChildRef.
func unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}

	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["child_table"].(*types.AttributeValueMemberS); ok {
		ref.TableName = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}

	return ref
}

// ttlValue reads a TTL attribute, returning 0 when absent.
func ttlValue(item map[string]types.AttributeValue) int64 {
	v, ok := item[ttlAttr].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n
}

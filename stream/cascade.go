// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events from record tables
// and propagates a newly set TTL to every record that references the
// deleted one. It is meant to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Lambda retries the batch
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only act on the soft delete itself
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	if entityRef == "" {
		return nil
	}
	parentRefs := getStringSetAttr(record.Change.NewImage, "parent_refs")

	h.logger.Info("processing cascade delete",
		"entityRef", entityRef,
		"parents", len(parentRefs),
		"ttl", newTTL,
	)

	// Deleted children are included; SetChildTTL leaves them alone.
	children, err := h.store.QueryAllChildren(ctx, entityRef)
	if err != nil {
		return fmt.Errorf("query children: %w", err)
	}

	// Each child deletion re-enters this handler through its own stream.
	for _, child := range children {
		if err := h.store.SetChildTTL(ctx, child, entityRef, newTTL); err != nil {
			h.logger.Warn("failed to set TTL on child",
				"child", child.Ref,
				"error", err,
			)
		}
		if err := h.store.SetRelationshipTTL(ctx, child.Ref, entityRef, newTTL); err != nil {
			h.logger.Warn("failed to set relationship TTL",
				"child", child.Ref,
				"parent", entityRef,
				"error", err,
			)
		}
	}

	// This record's own relationship rows expire with it.
	for _, parentRef := range parentRefs {
		if err := h.store.SetRelationshipTTL(ctx, entityRef, parentRef, newTTL); err != nil {
			h.logger.Warn("failed to set relationship TTL",
				"entity", entityRef,
				"parent", parentRef,
				"error", err,
			)
		}
	}

	h.logger.Info("cascade delete completed",
		"entityRef", entityRef,
		"childrenProcessed", len(children),
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getStringSetAttr extracts a string set attribute from a DynamoDB stream
// image. A list of strings is accepted too.
func getStringSetAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	v, ok := image[key]
	if !ok {
		return nil
	}
	switch v.DataType() {
	case events.DataTypeStringSet:
		return v.StringSet()
	case events.DataTypeList:
		var result []string
		for _, item := range v.List() {
			if item.DataType() == events.DataTypeString {
				result = append(result, item.String())
			}
		}
		return result
	}
	return nil
}

// ConvertStreamKey converts a DynamoDB stream key to a store.PK.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.PK {
	result := make(store.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}

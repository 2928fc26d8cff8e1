package store

import (
	"log/slog"
	"strings"

	"github.com/jacentio/arbor/internal/shard"
	"github.com/jacentio/arbor/model"
)

// Config holds configuration for the Store.
type Config struct {
	// RelationshipTable is the name of the relationship table.
	// Default: "arbor_relationships"
	RelationshipTable string

	// TableName maps a model to its DynamoDB table.
	// Default: the qualified model name with "." replaced by "_".
	TableName func(m *model.Model) string

	// NumShards is the number of shards for the relationship table.
	// Higher values increase write throughput for heavily referenced
	// records but require more parallel queries.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// PageSize is the Scan page size and the number of results a search
	// page holds when no Take is given.
	// Default: 100
	PageSize int32

	// CheckReferences makes Save fail with ErrReferenceNotFound when a
	// referenced record does not exist or is deleted.
	CheckReferences bool

	// OrphanProtect makes Delete fail with ErrHasReferences while active
	// records still reference the deleted record.
	OrphanProtect bool

	// Logger receives debug logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		RelationshipTable: "arbor_relationships",
		NumShards:         1,
		PageSize:          100,
		CheckReferences:   true,
	}
}

// DefaultTableName derives a table name from the model's qualified name.
func DefaultTableName(m *model.Model) string {
	return strings.ReplaceAll(m.QualifiedName(), ".", "_")
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.RelationshipTable == "" {
		c.RelationshipTable = "arbor_relationships"
	}
	if c.TableName == nil {
		c.TableName = DefaultTableName
	}
	c.NumShards = shard.Clamp(c.NumShards)
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

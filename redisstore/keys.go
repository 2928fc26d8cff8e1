package redisstore

import (
	"fmt"

	"github.com/jacentio/arbor/internal/shard"
	"github.com/jacentio/arbor/model"
)

// RecordKey returns the key holding the JSON record for id.
// Format: {prefix}:{model}:record:{id}
func RecordKey(prefix string, m *model.Model, id string) string {
	return fmt.Sprintf("%s:%s:record:%s", prefix, m.QualifiedName(), id)
}

// IDSetBase returns the unsharded name of the model's id set.
// Format: {prefix}:{model}:ids
func IDSetBase(prefix string, m *model.Model) string {
	return fmt.Sprintf("%s:%s:ids", prefix, m.QualifiedName())
}

func (s *Store) recordKey(m *model.Model, id string) string {
	return RecordKey(s.config.Prefix, m, id)
}

// idSetKey returns the id set shard that holds id.
func (s *Store) idSetKey(m *model.Model, id string) string {
	return shard.Key(IDSetBase(s.config.Prefix, m), id, s.config.NumShards)
}

// idSetKeys returns every id set shard of the model.
func (s *Store) idSetKeys(m *model.Model) []string {
	return shard.Keys(IDSetBase(s.config.Prefix, m), s.config.NumShards)
}

func idString(id any) string {
	return fmt.Sprint(id)
}

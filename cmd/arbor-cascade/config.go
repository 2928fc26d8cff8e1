package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jacentio/arbor/store"
)

func configFromEnv(getenv func(string) string) (store.Config, error) {
	cfg := store.DefaultConfig()
	if v := getenv("ARBOR_RELATIONSHIP_TABLE"); v != "" {
		cfg.RelationshipTable = v
	}
	if v := getenv("ARBOR_NUM_SHARDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 256 {
			return store.Config{}, fmt.Errorf("ARBOR_NUM_SHARDS must be between 1 and 256, got %q", v)
		}
		cfg.NumShards = n
	}
	return cfg, nil
}

func logLevel(getenv func(string) string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv("ARBOR_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

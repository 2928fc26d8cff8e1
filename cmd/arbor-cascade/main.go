// Command arbor-cascade is a Lambda function consuming the DynamoDB streams
// of arbor tables. When a record is soft deleted it expires the records
// that reference it.
//
// Environment:
//
//	ARBOR_RELATIONSHIP_TABLE  relationship table name (default arbor_relationships)
//	ARBOR_NUM_SHARDS          relationship shards per parent (default 1)
//	ARBOR_LOG_LEVEL           debug, info, warn or error (default info)
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/arbor/store"
	"github.com/jacentio/arbor/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv)}))

	cfg, err := configFromEnv(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.Logger = logger

	s, err := store.NewFromEnv(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	lambda.Start(stream.NewHandler(s, logger).HandleCascadeDelete)
}

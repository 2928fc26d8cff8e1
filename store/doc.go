// Package store is a DynamoDB datastore adapter for arbor models with
// reference tracking.
//
// Each model is stored in its own table, keyed by its primary key property.
// Reference properties are mirrored into a shared relationship table so
// that the records pointing at a given record can be found without a scan.
//
// # Key Features
//
//   - Reference validation on save (atomic, in the same transaction)
//   - Orphan protection (refuse to delete records that are still referenced)
//   - Soft deletes with TTL, cascaded to referencing records by the stream package
//   - Configurable write sharding of the relationship table
//   - Query compilation to DynamoDB filter expressions
//
// # Tables
//
// Record tables need a partition key named after the model's primary key
// and TTL enabled on the "ttl" attribute. The relationship table has the
// partition key "pk" and sort key "child_ref" (both strings), TTL on
// "ttl", and a stream when cascading deletes are wanted.
//
// The store adds a few attributes to every record and strips them on read:
// entity_ref ("namespace.Model#id"), parent_refs (the entity refs the record
// references) and updated_at.
//
// # Usage
//
//	s, err := store.NewFromEnv(ctx, store.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	authors, _ := orm.New(authorDef, s, orm.Options{})
//	books, _ := orm.New(bookDef, s, orm.Options{})
//	if err := s.Register(authors.Model, books.Model); err != nil {
//	    return err
//	}
//
// # Configuration
//
// Use [DefaultConfig] for small datasets (NumShards=1, single queries).
// Increase NumShards for records that are referenced by many others:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//
// # Searching
//
// Search compiles the query into a Scan filter expression. Text comparisons
// in DynamoDB are case sensitive and some matches (suffixes, comparisons
// inside lists) cannot be expressed exactly, so every item is re-checked in
// process. A search keeps scanning until Take matches (PageSize when no Take
// is given) are found or the table is exhausted, so a result never misses a
// match just because it sat beyond the first Scan page. Unsorted page tokens
// are the key of the last item examined; sorted searches read every match
// and page by offset.
//
// # Errors
//
//   - [ErrReferenceNotFound] - a referenced record is missing or deleted
//   - [ErrAlreadyExists] - CreateAndSave found an existing record
//   - [ErrAlreadyDeleted] - Save targeted a record marked for deletion
//   - [ErrHasReferences] - Delete refused by orphan protection
//   - [ErrInvalidPage] - unrecognized page token
package store

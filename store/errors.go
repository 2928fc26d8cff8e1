package store

import "errors"

var (
	// ErrReferenceNotFound is returned when a referenced record doesn't exist or is deleted.
	ErrReferenceNotFound = errors.New("arbor: referenced record not found")

	// ErrAlreadyExists is returned when attempting to create a record with an existing ID.
	ErrAlreadyExists = errors.New("arbor: record already exists")

	// ErrHasReferences is returned when deleting a record that active records still reference.
	ErrHasReferences = errors.New("arbor: record is still referenced")

	// ErrAlreadyDeleted is returned when saving a record that is marked for deletion.
	ErrAlreadyDeleted = errors.New("arbor: record is already deleted")

	// ErrMissingID is returned when a record has no primary key value.
	ErrMissingID = errors.New("arbor: record has no primary key")

	// ErrInvalidPage is returned for a page token this store did not issue.
	ErrInvalidPage = errors.New("arbor: invalid page token")

	// ErrUnprocessedItems is returned when a batch write keeps leaving items unprocessed.
	ErrUnprocessedItems = errors.New("arbor: batch write left unprocessed items")
)

package docstore

import "errors"

// Domain-specific errors for document store operations.
var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrDuplicateID is returned by InsertOne when the id already exists.
	ErrDuplicateID = errors.New("docstore: document id already exists")

	// ErrInvalidFilter is returned for selectors the backends cannot express.
	ErrInvalidFilter = errors.New("docstore: invalid filter")

	// ErrInvalidDocument is returned for documents without an id or with non-object JSON.
	ErrInvalidDocument = errors.New("docstore: invalid document")
)

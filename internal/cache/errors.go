package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound is returned when updating a document the cache does not hold.
	ErrDocumentNotFound = errors.New("cache: document not found")

	// ErrDocumentExists is returned when inserting an id already present.
	ErrDocumentExists = errors.New("cache: document already exists")

	// ErrIDChanged is returned when an update modifies a document's id.
	ErrIDChanged = errors.New("cache: update changed the document id")

	// ErrLockNotHeld is returned when the cache's lock is missing, released or for another scope.
	ErrLockNotHeld = errors.New("cache: lock not held for scope")

	// ErrPlaylistNotFound is returned when the playlist to cache does not exist.
	ErrPlaylistNotFound = errors.New("cache: playlist not found")
)

// PendingKind names the kind of work AssertNoChanges found.
type PendingKind string

const (
	PendingDocuments PendingKind = "documents"
	PendingDeferred  PendingKind = "deferred"
	PendingAfterSave PendingKind = "afterSave"
)

// UnsavedChangesError is returned by AssertNoChanges.
type UnsavedChangesError struct {
	Kind PendingKind
	// Name is the collection name for PendingDocuments.
	Name  string
	Count int
}

func (e *UnsavedChangesError) Error() string {
	switch e.Kind {
	case PendingDocuments:
		return fmt.Sprintf("cache: unsaved changes in collection %q", e.Name)
	case PendingDeferred:
		return fmt.Sprintf("cache: %d deferred functions not run", e.Count)
	default:
		return fmt.Sprintf("cache: %d after-save functions not run", e.Count)
	}
}

// Package cache is the staged working copy a job mutates before commit.
//
// A job loads the documents it needs once, reads and writes them in memory,
// and persists the result with a single SaveAllToDatabase call. Nothing is
// written to the store before that call and nothing at all if the job
// returns an error first.
//
// # Collections
//
//   - Collection[T]: writable. Insert, Update, Remove are visible to later
//     reads at once. Documents are held encoded, so every read returns an
//     independent copy.
//   - ReadOnlyCollection[T]: loaded templates the job may not change.
//   - Object[T]: a single writable document such as the playlist.
//
// # Commit
//
// SaveAllToDatabase:
//
//  1. runs Defer callbacks in registration order (a failure aborts the save)
//  2. diffs every writable collection against its last committed bytes and
//     issues one BulkWrite per changed collection: an upserting replace per
//     inserted or changed document and one delete-many for removed ids
//  3. runs DeferAfterSave callbacks in registration order; their errors are
//     logged and never undo the commit
//
// If any bulk write fails the after-save callbacks are dropped. A second
// save with no mutation in between issues no writes.
//
//	+----------------+   Insert/Update/Remove   +-------------------+
//	|  job operation | -----------------------> |  Collection (mem) |
//	+----------------+                          +---------+---------+
//	        |  Defer / DeferAfterSave                     | diff vs committed
//	        v                                             v
//	+----------------+     BulkWrite per coll   +-------------------+
//	| SaveAllToDB    | -----------------------> |  docstore.Store   |
//	+----------------+                          +-------------------+
package cache

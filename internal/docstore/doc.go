// Package docstore is the document store the playout core persists to.
//
// Every entity type lives in its own named collection of JSON documents keyed
// by id. Three backends implement Store:
//
//   - SQLiteStore: one STRICT table, selectors compiled to json_extract
//   - MongoStore: one MongoDB collection per entity, bulk writes as a single
//     ordered BulkWrite of ReplaceOne(upsert) and DeleteMany models
//   - MemoryStore: maps guarded by a mutex, for tests and throwaway studios
//
// Selectors are deliberately small: a Filter is a conjunction of equality
// tests on top-level or dotted JSON fields, where a []string value means
// "one of". Anything richer is done in memory by the staged cache.
//
// Within one collection a BulkWrite is atomic on SQLite and MemoryStore.
// MongoDB applies the batch in order but does not roll back a partial batch.
package docstore

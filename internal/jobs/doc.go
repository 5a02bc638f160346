// Package jobs is the job runner: the only entry point into playout and
// ingest operations.
//
// Every job follows the same sequence:
//
//  1. wait for a concurrency slot; this is the only cancellation point
//  2. acquire the playlist or rundown lock
//  3. detach from caller cancellation
//  4. build the cache, run the operation, commit with SaveAllToDatabase
//  5. release the lock, then record the job log and telemetry
//
// Activation jobs first pass a per-studio gate so that two playlists of
// one studio cannot activate at the same time. The gate is always taken
// before the playlist lock.
package jobs

// Package playout is the playout state machine of a rundown playlist.
//
// Every operation runs against a *cache.PlayoutCache that the caller built
// under the playlist lock, validates its preconditions before mutating
// anything, and leaves the commit to the caller. A rejected operation
// returns a *UserError with a stable Code; the caller discards the cache.
//
//	Inactive --Activate(rehearsal)--> Rehearsal <--Activate--> Active
//	   ^                                  |                      |
//	   +------------Deactivate------------+----------------------+
//
// Reset is allowed while inactive, or while active when the studio permits
// it or the caller forces it.
//
// Next-part selection, the timing tracker and the assembly of the lookahead
// input live here too. Side effects outside the store (device functions,
// timeline publication, timing telemetry) are registered with
// DeferAfterSave and only run once the commit succeeded.
package playout

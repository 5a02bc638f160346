// Package lock serialises jobs that touch the same playlist or rundown.
//
// A Manager hands out exclusive, named locks per Scope. Acquire blocks
// (without polling) until the scope is free or the context is done.
// Jobs on different scopes never wait for each other.
//
//	ctx, lk, err := locks.Acquire(ctx, lock.Playlist(playlistID))
//	if err != nil {
//	    return err
//	}
//	defer lk.Release()
//
// Rules enforced at runtime:
//
//   - A job holds at most one scope lock. Acquiring a second one from a
//     context that already carries a held lock fails immediately with
//     ErrNestedLock instead of risking a deadlock.
//   - Release succeeds exactly once; a second call returns ErrAlreadyReleased.
//
// Gate is a separate keyed mutex for coarse admission control (the job
// runner uses one per studio for activations). It is never nested inside a
// scope lock, only taken before one.
package lock

package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
)

// DeferFunc runs inside SaveAllToDatabase before any write.
type DeferFunc func(ctx context.Context) error

// AfterSaveFunc runs once every write of a save has succeeded.
type AfterSaveFunc func(ctx context.Context) error

// Logger is the logging interface used by the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SaveStats describes what one SaveAllToDatabase call wrote.
type SaveStats struct {
	BulkWrites int
	Upserted   int
	Deleted    int
	Duration   time.Duration
}

// Cache holds the writable collections of a job plus its deferred work.
//
// A Cache belongs to one job and is not safe for concurrent use.
type Cache struct {
	store     docstore.Store
	lk        *lock.Lock
	savers    []saver
	deferred  []DeferFunc
	afterSave []AfterSaveFunc
	logger    Logger
}

func newCache(store docstore.Store, lk *lock.Lock) *Cache {
	return &Cache{store: store, lk: lk, logger: noopLogger{}}
}

// SetLogger sets the logger used for after-save failures.
func (c *Cache) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Store returns the backing store for read-only lookups outside the cached set.
func (c *Cache) Store() docstore.Store { return c.store }

// Lock returns the lock the cache was created under.
func (c *Cache) Lock() *lock.Lock { return c.lk }

func (c *Cache) register(s saver) { c.savers = append(c.savers, s) }

// Defer registers fn to run at the start of the next save.
func (c *Cache) Defer(fn DeferFunc) { c.deferred = append(c.deferred, fn) }

// DeferAfterSave registers fn to run after the next successful save.
func (c *Cache) DeferAfterSave(fn AfterSaveFunc) { c.afterSave = append(c.afterSave, fn) }

// SaveAllToDatabase commits every pending change.
func (c *Cache) SaveAllToDatabase(ctx context.Context) (SaveStats, error) {
	start := time.Now()
	var stats SaveStats

	if c.lk == nil || c.lk.IsReleased() {
		return stats, ErrLockNotHeld
	}

	// Deferred functions may register more deferred work; run until drained.
	for len(c.deferred) > 0 {
		fn := c.deferred[0]
		c.deferred = c.deferred[1:]
		if err := fn(ctx); err != nil {
			c.deferred = nil
			c.afterSave = nil
			return stats, fmt.Errorf("deferred function: %w", err)
		}
	}

	type pending struct {
		s   saver
		ops []docstore.WriteOp
	}
	var work []pending
	for _, s := range c.savers {
		if ops := s.pendingOps(); len(ops) > 0 {
			work = append(work, pending{s: s, ops: ops})
		}
	}

	results := make([]docstore.BulkResult, len(work))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range work {
		g.Go(func() error {
			res, err := c.store.BulkWrite(gctx, w.s.Name(), w.ops)
			if err != nil {
				return fmt.Errorf("saving %s: %w", w.s.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.afterSave = nil
		return stats, err
	}

	for i, w := range work {
		w.s.markSaved()
		stats.BulkWrites++
		stats.Upserted += results[i].Upserted
		stats.Deleted += results[i].Deleted
	}

	after := c.afterSave
	c.afterSave = nil
	for i, fn := range after {
		if err := fn(ctx); err != nil {
			c.logger.Error("after-save function failed", "index", i, "error", err)
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// AssertNoChanges returns an *UnsavedChangesError if anything is pending.
func (c *Cache) AssertNoChanges() error {
	for _, s := range c.savers {
		if s.IsModified() {
			return &UnsavedChangesError{Kind: PendingDocuments, Name: s.Name()}
		}
	}
	if n := len(c.deferred); n > 0 {
		return &UnsavedChangesError{Kind: PendingDeferred, Count: n}
	}
	if n := len(c.afterSave); n > 0 {
		return &UnsavedChangesError{Kind: PendingAfterSave, Count: n}
	}
	return nil
}

// Discard drops every pending change and deferred function.
func (c *Cache) Discard() {
	c.deferred = nil
	c.afterSave = nil
	c.savers = nil
}

func checkLock(lk *lock.Lock, want lock.Scope) error {
	if lk == nil || lk.IsReleased() || lk.Scope() != want {
		return fmt.Errorf("%w %s", ErrLockNotHeld, want)
	}
	return nil
}

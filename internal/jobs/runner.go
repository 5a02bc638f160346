package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

// Kind names a job in the job log and telemetry.
type Kind string

const (
	KindActivate         Kind = "activate"
	KindDeactivate       Kind = "deactivate"
	KindReset            Kind = "reset"
	KindTake             Kind = "take"
	KindSetNextPart      Kind = "set-next-part"
	KindMoveNextPart     Kind = "move-next-part"
	KindSetNextSegment   Kind = "set-next-segment"
	KindQueueNextSegment Kind = "queue-next-segment"
	KindPlayback         Kind = "playback"
	KindImport           Kind = "import"
	KindLookahead        Kind = "lookahead"
	KindStatus           Kind = "status"
)

// JobLog persists one entry per job. *audit.SQLiteRepository satisfies it.
type JobLog interface {
	Record(ctx context.Context, e *audit.Entry) error
}

// Telemetry receives one point per job. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteJobMetric(kind, playlistID, outcome string, duration time.Duration)
}

// Logger is the logging interface used by the runner.
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

// Config bounds job execution.
type Config struct {
	// MaxConcurrentJobs is the number of jobs running at once. Values below 1 mean 1.
	MaxConcurrentJobs int

	// DispatchTimeout bounds the wait for a slot, the gate and the lock. 0 disables.
	DispatchTimeout time.Duration
}

// Deps are the runner's collaborators. JobLog, Telemetry and Logger may be nil.
type Deps struct {
	Store     docstore.Store
	Locks     *lock.Manager
	Engine    *playout.Engine
	JobLog    JobLog
	Telemetry Telemetry
	Logger    Logger
}

// Runner serializes jobs per playlist and rundown.
//
// Thread Safety: all methods are safe for concurrent use.
type Runner struct {
	cfg       Config
	store     docstore.Store
	locks     *lock.Manager
	gate      *lock.Gate
	slots     *semaphore.Weighted
	engine    *playout.Engine
	jobLog    JobLog
	telemetry Telemetry
	logger    Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, deps Deps) *Runner {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	r := &Runner{
		cfg:       cfg,
		store:     deps.Store,
		locks:     deps.Locks,
		gate:      lock.NewGate(),
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		engine:    deps.Engine,
		jobLog:    deps.JobLog,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
	}
	if r.locks == nil {
		r.locks = lock.NewManager()
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// job describes one unit of work.
type job struct {
	kind       Kind
	scope      lock.Scope
	playlistID string
	rundownID  string

	// gateKey is the studio id for activation jobs.
	gateKey string

	// readOnly jobs are not written to the job log.
	readOnly bool
}

// run executes op under j's lock. op receives the detached, lock-carrying
// context.
func (r *Runner) run(ctx context.Context, j job, op func(ctx context.Context, lk *lock.Lock) error) (err error) {
	start := time.Now()
	defer func() { r.finish(j, start, err) }()

	waitCtx := ctx
	if r.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.DispatchTimeout)
		defer cancel()
	}

	if err := r.slots.Acquire(waitCtx, 1); err != nil {
		return fmt.Errorf("%w: %s waiting for a slot: %w", ErrNotDispatched, j.kind, err)
	}
	defer r.slots.Release(1)

	if j.gateKey != "" {
		leave, err := r.gate.Enter(waitCtx, j.gateKey)
		if err != nil {
			return fmt.Errorf("%w: %s waiting for studio %s: %w", ErrNotDispatched, j.kind, j.gateKey, err)
		}
		defer leave()
	}

	lockCtx, lk, err := r.locks.Acquire(waitCtx, j.scope)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrNotDispatched, err)
		}
		return err
	}
	defer func() {
		if rerr := lk.Release(); rerr != nil {
			r.logger.Error("lock release failed", "scope", j.scope.String(), "error", rerr)
		}
	}()

	return op(context.WithoutCancel(lockCtx), lk)
}

// runPlayout runs a playlist-scoped job and commits its cache.
func (r *Runner) runPlayout(ctx context.Context, j job, op func(ctx context.Context, pc *cache.PlayoutCache) error) error {
	return r.run(ctx, j, func(ctx context.Context, lk *lock.Lock) error {
		pc, err := r.playoutCache(ctx, lk, j.playlistID)
		if err != nil {
			return err
		}
		if err := op(ctx, pc); err != nil {
			pc.Discard()
			return err
		}
		if j.readOnly {
			return pc.AssertNoChanges()
		}
		stats, err := pc.SaveAllToDatabase(ctx)
		if err != nil {
			return fmt.Errorf("committing %s: %w", j.kind, err)
		}
		r.logger.Debug("job committed",
			"kind", string(j.kind),
			"playlist_id", j.playlistID,
			"bulk_writes", stats.BulkWrites,
			"upserted", stats.Upserted,
			"deleted", stats.Deleted)
		return nil
	})
}

func (r *Runner) playoutCache(ctx context.Context, lk *lock.Lock, playlistID string) (*cache.PlayoutCache, error) {
	pc, err := cache.CreatePlayoutCache(ctx, r.store, lk, playlistID)
	if errors.Is(err, cache.ErrPlaylistNotFound) {
		return nil, playout.NewUserError(playout.CodePlaylistNotFound, "playlist %s not found", playlistID)
	}
	if err != nil {
		return nil, err
	}
	pc.SetLogger(r.logger)
	return pc, nil
}

// studioOf reads the playlist's studio for the activation gate. The read is
// unlocked; a playlist never changes studio.
func (r *Runner) studioOf(ctx context.Context, playlistID string) (string, error) {
	pl, err := docstore.FindOneAs[model.RundownPlaylist](ctx, r.store, model.CollectionPlaylists, docstore.ByID(playlistID))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", playout.NewUserError(playout.CodePlaylistNotFound, "playlist %s not found", playlistID)
	}
	if err != nil {
		return "", fmt.Errorf("loading playlist: %w", err)
	}
	return pl.StudioID, nil
}

// finish records the job log entry and telemetry point.
func (r *Runner) finish(j job, start time.Time, err error) {
	duration := time.Since(start)
	outcome := audit.OutcomeOK
	var code string
	switch {
	case err == nil:
	case playout.IsUserError(err):
		outcome = audit.OutcomeUserError
		code = string(playout.ErrorCode(err))
	default:
		outcome = audit.OutcomeFailed
	}

	attrs := []any{
		"kind", string(j.kind),
		"scope", j.scope.String(),
		"outcome", string(outcome),
		"duration", duration,
	}
	switch outcome {
	case audit.OutcomeOK:
		r.logger.Debug("job finished", attrs...)
	case audit.OutcomeUserError:
		r.logger.Info("job rejected", append(attrs, "code", code, "error", err)...)
	default:
		r.logger.Error("job failed", append(attrs, "error", err)...)
	}

	if r.telemetry != nil {
		r.telemetry.WriteJobMetric(string(j.kind), j.playlistID, string(outcome), duration)
	}
	if r.jobLog == nil || j.readOnly {
		return
	}
	entry := &audit.Entry{
		Kind:       string(j.kind),
		StudioID:   j.gateKey,
		PlaylistID: j.playlistID,
		RundownID:  j.rundownID,
		Outcome:    outcome,
		ErrorCode:  code,
		Duration:   duration,
	}
	if err != nil {
		entry.Message = err.Error()
	}
	// The job has already finished; its caller's cancellation must not drop the entry.
	if rerr := r.jobLog.Record(context.Background(), entry); rerr != nil {
		r.logger.Warn("job log write failed", "kind", string(j.kind), "error", rerr)
	}
}

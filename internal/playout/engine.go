package playout

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/model"
)

// Config holds the playout timing policy.
type Config struct {
	// AutonextGuard rejects takes this close before an automatic advance.
	AutonextGuard time.Duration

	// MinimumTakeSpan is the shortest allowed interval between takes.
	MinimumTakeSpan time.Duration

	// LookaheadDefaultDistance replaces layer search distances of -1 and lower.
	LookaheadDefaultDistance int
}

// BlueprintContext is the read-only view handed to blueprint callbacks.
type BlueprintContext struct {
	Playlist model.RundownPlaylist
	Current  *model.PartInstance
	Next     *model.PartInstance
}

// Blueprint receives show-specific callbacks. The job waits for each call
// before committing; an error fails the job.
type Blueprint interface {
	OnSetAsNext(ctx context.Context, bc BlueprintContext) error
	OnTake(ctx context.Context, bc BlueprintContext) error
}

// NoopBlueprint accepts every callback.
type NoopBlueprint struct{}

func (NoopBlueprint) OnSetAsNext(context.Context, BlueprintContext) error { return nil }
func (NoopBlueprint) OnTake(context.Context, BlueprintContext) error      { return nil }

// DeviceNotifier executes peripheral device functions. It is only ever
// called after a successful commit.
type DeviceNotifier interface {
	ExecuteFunction(ctx context.Context, deviceID, function string, args map[string]any) error
}

// TimelineUpdate is the playout state handed to the timeline generator.
type TimelineUpdate struct {
	StudioID     string `json:"studioId"`
	PlaylistID   string `json:"playlistId"`
	ActivationID string `json:"activationId,omitempty"`
	Rehearsal    bool   `json:"rehearsal"`

	CurrentPartInstanceID  string `json:"currentPartInstanceId,omitempty"`
	NextPartInstanceID     string `json:"nextPartInstanceId,omitempty"`
	PreviousPartInstanceID string `json:"previousPartInstanceId,omitempty"`

	Lookahead   lookahead.Result `json:"lookahead"`
	GeneratedAt int64            `json:"generatedAt"`
}

// TimelineSink receives the timeline after every committed playout job.
type TimelineSink interface {
	PublishTimeline(ctx context.Context, update TimelineUpdate) error
}

// TimelineSinks fans a timeline update out to several sinks. Every sink is
// called; their errors are joined.
type TimelineSinks []TimelineSink

// PublishTimeline implements TimelineSink.
func (s TimelineSinks) PublishTimeline(ctx context.Context, update TimelineUpdate) error {
	var errs []error
	for _, sink := range s {
		if err := sink.PublishTimeline(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PartTiming compares the planned and reported start of a part instance.
type PartTiming struct {
	PlaylistID     string
	PartInstanceID string
	PartID         string
	Planned        *int64
	Reported       int64
}

// TimingRecorder receives part timings after commit.
type TimingRecorder interface {
	RecordPartTiming(t PartTiming)
}

// Logger is the logging interface used by the engine.
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

// Deps are the engine's collaborators. Nil fields get no-op defaults.
type Deps struct {
	Blueprint Blueprint
	Devices   DeviceNotifier
	Timeline  TimelineSink
	Timings   TimingRecorder
	Clock     func() time.Time
	Logger    Logger
}

// Engine runs playout operations against a locked PlayoutCache.
//
// The engine holds no per-playlist state; every operation reads and
// writes only the cache it is given.
//
// Thread Safety: safe for concurrent use on different caches.
type Engine struct {
	cfg       Config
	blueprint Blueprint
	devices   DeviceNotifier
	timeline  TimelineSink
	timings   TimingRecorder
	clock     func() time.Time
	logger    Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	e := &Engine{
		cfg:       cfg,
		blueprint: deps.Blueprint,
		devices:   deps.Devices,
		timeline:  deps.Timeline,
		timings:   deps.Timings,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if e.blueprint == nil {
		e.blueprint = NoopBlueprint{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e
}

// now returns the clock in milliseconds.
func (e *Engine) now() int64 {
	return e.clock().UnixMilli()
}

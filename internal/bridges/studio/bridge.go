package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/playout-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/playout-core/internal/playout"
)

// handleTimeout bounds a single playback report handed to the runner.
const handleTimeout = 10 * time.Second

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// PlaybackHandler applies playback reports to a playlist.
type PlaybackHandler interface {
	OnPlayoutPlaybackChanged(ctx context.Context, playlistID string, changes []playout.PlaybackChange) ([]playout.Inconsistency, error)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Bridge.
type Options struct {
	// QoS is used for every publish and subscription.
	QoS byte

	// Clock overrides time.Now for message timestamps.
	Clock func() time.Time

	Logger Logger
}

// Bridge publishes playout output to the studio and feeds playback reports
// back into the job runner.
//
// It implements playout.DeviceNotifier and playout.TimelineSink.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte
	clock  func() time.Time

	handler   PlaybackHandler
	handlerMu sync.RWMutex

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	started   bool
	startMu   sync.Mutex
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

var (
	_ playout.DeviceNotifier = (*Bridge)(nil)
	_ playout.TimelineSink   = (*Bridge)(nil)
)

// NewBridge creates a bridge on top of a connected MQTT client.
func NewBridge(client MQTTClient, opts Options) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Bridge{
		mqtt:      client,
		qos:       opts.QoS,
		clock:     clock,
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    opts.Logger,
	}
}

// SetPlaybackHandler sets where playback reports are delivered. Reports
// that arrive without a handler are dropped with a warning.
func (b *Bridge) SetPlaybackHandler(h PlaybackHandler) {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	b.handler = h
}

// Start subscribes to playback reports of every studio.
func (b *Bridge) Start(_ context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return nil
	}

	topic := b.topics.AllStudioPlayback()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handlePlayback); err != nil {
		return fmt.Errorf("subscribe to playback: %w", err)
	}
	b.started = true
	b.logInfo("studio bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes and waits for in-flight reports.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		b.startMu.Lock()
		if b.started {
			if err := b.mqtt.Unsubscribe(b.topics.AllStudioPlayback()); err != nil {
				b.logError("failed to unsubscribe from playback", err)
			}
		}
		b.startMu.Unlock()

		b.wg.Wait()
		b.logInfo("studio bridge stopped")
	})
}

// ExecuteFunction publishes a device function call.
func (b *Bridge) ExecuteFunction(_ context.Context, deviceID, function string, args map[string]any) error {
	if !b.mqtt.IsConnected() {
		return ErrNotConnected
	}
	msg := FunctionMessage{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Function:  function,
		Args:      args,
		Timestamp: b.clock().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal function message: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.DeviceFunction(deviceID), payload, b.qos, false); err != nil {
		return fmt.Errorf("publish device function: %w", err)
	}
	b.logDebug("device function sent", "device_id", deviceID, "function", function, "call_id", msg.ID)
	return nil
}

// PublishTimeline publishes the studio timeline state as a retained message
// so a restarted generator picks up the latest state.
func (b *Bridge) PublishTimeline(_ context.Context, update playout.TimelineUpdate) error {
	if !b.mqtt.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.StudioTimeline(update.StudioID), payload, b.qos, true); err != nil {
		return fmt.Errorf("publish timeline: %w", err)
	}
	return nil
}

// handlePlayback processes a playback report. Malformed reports are logged
// and acknowledged; redelivery would not fix them.
func (b *Bridge) handlePlayback(topic string, payload []byte) error {
	studioID, ok := mqtt.StudioFromTopic(topic)
	if !ok {
		b.logError("invalid playback topic", fmt.Errorf("topic: %s", topic))
		return nil
	}

	playlistID, changes, err := ParsePlaybackReport(payload)
	if err != nil {
		b.logError("failed to parse playback report", err)
		return nil
	}
	if len(changes) == 0 {
		return nil
	}

	b.handlerMu.RLock()
	h := b.handler
	b.handlerMu.RUnlock()
	if h == nil {
		b.logWarn("playback report dropped, no handler", "studio_id", studioID, "playlist_id", playlistID)
		return nil
	}

	if b.ctx.Err() != nil {
		return nil
	}
	b.wg.Add(1)
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, handleTimeout)
	defer cancel()

	inconsistencies, err := h.OnPlayoutPlaybackChanged(ctx, playlistID, changes)
	if err != nil {
		b.logError("playback report failed", fmt.Errorf("playlist %s: %w", playlistID, err))
		return err
	}
	for _, inc := range inconsistencies {
		b.logWarn("playback inconsistency",
			"studio_id", studioID,
			"playlist_id", playlistID,
			"kind", inc.Kind,
			"id", inc.ID,
			"message", inc.Message)
	}
	return nil
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

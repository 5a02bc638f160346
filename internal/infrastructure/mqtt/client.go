package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

// Logger receives handler failures and reconnect notices.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler processes one inbound message. Handlers run on paho's
// delivery goroutines; a returned error is logged and the message is
// still acknowledged.
type MessageHandler func(topic string, payload []byte) error

type route struct {
	qos     byte
	handler MessageHandler
}

// Client is the playout core's connection to the studio broker.
//
// It keeps a presence message on the system status topic, re-subscribes
// its routes after every reconnect, and shields the connection from
// panicking handlers. All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	now    func() time.Time

	connected atomic.Bool

	routes   map[string]route
	routesMu sync.RWMutex

	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Connect dials the broker and blocks until the first connection succeeds
// or the connect timeout passes.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		now:    time.Now,
		routes: make(map[string]route),
	}

	opts := buildClientOptions(cfg, c.now())
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Info("reconnecting to broker", "broker", brokerURL(cfg.Broker))
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stop the background retry loop.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, brokerURL(cfg.Broker), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}

	// The on-connect handler runs asynchronously; do not wait for it.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) connectionUp() {
	c.connected.Store(true)

	c.routesMu.RLock()
	for topic, r := range c.routes {
		if err := c.subscribe(topic, r); err != nil {
			if l := c.log(); l != nil {
				l.Warn("restoring subscription failed", "topic", topic, "error", err)
			}
		}
	}
	c.routesMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
		presencePayload(PresenceOnline, "", c.cfg.Broker.ClientID, c.now()))

	c.hooksMu.RLock()
	fn := c.onConnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) connectionDown(err error) {
	c.connected.Store(false)

	c.hooksMu.RLock()
	fn := c.onDisconnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close replaces the retained presence with a graceful offline message
// and disconnects. Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
			presencePayload(PresenceOffline, reasonShutdown, c.cfg.Broker.ClientID, c.now()))
		token.WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(quiesceMillis)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker session.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers fn to run after the initial connect and every
// reconnect, once routes are restored.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.hooksMu.Lock()
	c.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger sets where handler failures are reported.
func (c *Client) SetLogger(l Logger) {
	c.hooksMu.Lock()
	c.logger = l
	c.hooksMu.Unlock()
}

func (c *Client) log() Logger {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated to 0..2 by config
}

// dispatch adapts a MessageHandler to paho, recovering panics so one bad
// message cannot kill the delivery goroutine.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

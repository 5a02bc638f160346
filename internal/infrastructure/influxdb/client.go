package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

var errNotReady = errors.New("server not ready")

// Client writes playout telemetry to an InfluxDB v2 bucket. Writes are
// batched and never block a job; failed batches are reported through
// SetOnError.
//
// A closed client drops writes silently, so a *Client may be handed to
// the job runner and outlive the connection during shutdown.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	closed atomic.Bool

	errMu   sync.RWMutex
	onError func(error)
}

// clientOptions builds the write options for cfg. Every point is tagged
// with the studio it came from.
func clientOptions(cfg config.InfluxDBConfig, studioID string) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())). //nolint:gosec // positive
		SetApplicationName("playoutd")
	if studioID != "" {
		opts.AddDefaultTag("studio_id", studioID)
	}
	return opts
}

// Connect pings the server and opens a batched write API on the
// configured org and bucket.
func Connect(cfg config.InfluxDBConfig, studioID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	ic := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, studioID))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if ok, err := ic.Ping(ctx); err != nil || !ok {
		ic.Close()
		if err == nil {
			err = errNotReady
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:   ic,
		writeAPI: ic.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.RLock()
		fn := c.onError
		c.errMu.RUnlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError registers fn to receive failed batch writes.
func (c *Client) SetOnError(fn func(error)) {
	c.errMu.Lock()
	c.onError = fn
	c.errMu.Unlock()
}

// IsConnected reports whether the client is still accepting writes.
func (c *Client) IsConnected() bool {
	return c.client != nil && !c.closed.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if ok, err := c.client.Ping(ctx); err != nil || !ok {
		if err == nil {
			err = errNotReady
		}
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends buffered points and waits for the write to finish.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// Close flushes buffered points and releases the client. It is safe to
// call more than once.
func (c *Client) Close() error {
	if c.client == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

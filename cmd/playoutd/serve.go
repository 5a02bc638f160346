package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/playout-core/internal/api"
	"github.com/nerrad567/playout-core/internal/bridges/studio"
	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/playout-core/internal/infrastructure/logging"
	"github.com/nerrad567/playout-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/playout"
)

func serveCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the playout engine with its HTTP, WebSocket and MQTT surfaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(configPath(), false)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

// serve wires every component and blocks until ctx is cancelled or the
// HTTP server fails. Optional services that are enabled but unreachable
// abort startup.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting playout core",
		"version", version,
		"commit", commit,
		"build_date", date,
		"studio", cfg.Studio.ID,
		"storage", cfg.Storage.Backend,
	)

	c, err := openCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	broker, closeBroker, err := connectBroker(cfg.MQTT, log)
	if err != nil {
		return err
	}
	defer closeBroker()

	influx, closeInflux, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	defer closeInflux()

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	deps := playout.Deps{Timeline: playout.TimelineSinks{hub}}

	var bridge *studio.Bridge
	if broker != nil {
		bridge = studio.NewBridge(broker, studio.Options{
			QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
			Logger: log.Component("studio-bridge"),
		})
		deps.Devices = bridge
		deps.Timeline = playout.TimelineSinks{hub, bridge}
	}

	var telemetry jobs.Telemetry
	if influx != nil {
		telemetry = influx
		deps.Timings = jobs.TimingRecorder{W: influx}
	}
	runner := c.newRunner(deps, telemetry)

	if bridge != nil {
		bridge.SetPlaybackHandler(runner)
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("starting studio bridge: %w", err)
		}
		defer bridge.Stop()
	}

	apiDeps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Jobs:     runner,
		JobLog:   c.jobLog,
		DB:       c.db.DB,
		Hub:      hub,
		StudioID: cfg.Studio.ID,
		Version:  version,
	}
	if broker != nil {
		apiDeps.MQTT = broker
	}
	srv, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := c.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("document store: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(srv.Wait)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})

	log.Info("playout core ready", "address", srv.Addr().String())
	err = g.Wait()
	log.Info("playout core stopped")
	return err
}

// connectBroker returns a nil client when MQTT is disabled. The returned
// cleanup is always safe to call.
func connectBroker(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, func(), error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled; device functions and timeline publication are off")
		return nil, func() {}, nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mlog := log.Component("mqtt")
	client.SetLogger(mlog)
	client.SetOnConnect(func() { mlog.Info("broker session established") })
	client.SetOnDisconnect(func(err error) { mlog.Warn("broker connection lost", "error", err) })
	mlog.Info("connected", "broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port), "client_id", cfg.Broker.ClientID)

	return client, func() {
		if err := client.Close(); err != nil {
			mlog.Error("closing broker connection", "error", err)
		}
	}, nil
}

// connectInflux returns a nil client when telemetry is disabled.
func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, func(), error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB telemetry disabled")
		return nil, func() {}, nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Studio.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	ilog := log.Component("influxdb")
	client.SetOnError(func(err error) { ilog.Error("telemetry write failed", "error", err) })
	ilog.Info("connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

	return client, func() {
		if err := client.Close(); err != nil {
			ilog.Error("closing telemetry client", "error", err)
		}
	}, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/database"
	"github.com/nerrad567/playout-core/internal/infrastructure/logging"
	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

// mongoIndexes lists the fields the caches filter on, per collection.
var mongoIndexes = map[string][]string{
	model.CollectionPlaylists:      {"studioId"},
	model.CollectionRundowns:       {"playlistId"},
	model.CollectionSegments:       {"rundownId"},
	model.CollectionParts:          {"rundownId"},
	model.CollectionPieces:         {"startRundownId", "startPartId"},
	model.CollectionPartInstances:  {"playlistId", "reset"},
	model.CollectionPieceInstances: {"playlistId", "reset"},
}

// loadConfig reads the config file and builds the logger it describes.
// Offline commands log to stderr so their stdout stays machine-readable.
func loadConfig(path string, offline bool) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if offline {
		cfg.Logging.Output = "stderr"
	}
	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", path)
	return cfg, log, nil
}

// core is the storage shared by every command: the SQLite database holding
// the job log (and documents for the sqlite backend) plus the document store.
type core struct {
	cfg    *config.Config
	log    *logging.Logger
	db     *database.DB
	store  docstore.Store
	jobLog *audit.SQLiteRepository
}

// openCore opens the database, applies migrations and connects the
// configured document store.
func openCore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*core, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	store, err := openStore(ctx, cfg, db)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	log.Info("document store ready", "backend", cfg.Storage.Backend)

	return &core{
		cfg:    cfg,
		log:    log,
		db:     db,
		store:  store,
		jobLog: audit.NewSQLiteRepository(db.DB),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, db *database.DB) (docstore.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMongo:
		ms, err := docstore.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		for collection, fields := range mongoIndexes {
			if err := ms.EnsureIndexes(ctx, collection, fields...); err != nil {
				ms.Close() //nolint:errcheck // Best effort cleanup on error path
				return nil, err
			}
		}
		return ms, nil
	case config.BackendMemory:
		return docstore.NewMemoryStore(), nil
	default:
		return docstore.NewSQLiteStore(db), nil
	}
}

// newRunner builds the engine and job runner over the core's store.
func (c *core) newRunner(deps playout.Deps, telemetry jobs.Telemetry) *jobs.Runner {
	locks := lock.NewManager()
	locks.SetLogger(c.log.Component("lock"))

	if deps.Logger == nil {
		deps.Logger = c.log.Component("playout")
	}
	engine := playout.NewEngine(playout.Config{
		AutonextGuard:            c.cfg.Playout.AutonextGuard(),
		MinimumTakeSpan:          c.cfg.Playout.MinimumTakeSpan(),
		LookaheadDefaultDistance: c.cfg.Playout.LookaheadDefaultDistance,
	}, deps)

	return jobs.NewRunner(jobs.Config{
		MaxConcurrentJobs: c.cfg.Playout.MaxConcurrentJobs,
		DispatchTimeout:   c.cfg.Playout.JobTimeout(),
	}, jobs.Deps{
		Store:     c.store,
		Locks:     locks,
		Engine:    engine,
		JobLog:    c.jobLog,
		Telemetry: telemetry,
		Logger:    c.log.Component("jobs"),
	})
}

// Close releases the store and the database. The sqlite store shares the
// database handle and is closed with it.
func (c *core) Close() {
	if _, shared := c.store.(*docstore.SQLiteStore); !shared {
		if err := c.store.Close(); err != nil {
			c.log.Error("error closing document store", "error", err)
		}
	}
	if err := c.db.Close(); err != nil {
		c.log.Error("error closing database", "error", err)
	}
}

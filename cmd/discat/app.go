package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/config"
	"github.com/justestif/discat/internal/db"
	"github.com/justestif/discat/internal/discogs"
	"github.com/justestif/discat/internal/enrich"
	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/logging"
	"github.com/justestif/discat/internal/runs"
	"github.com/justestif/discat/internal/sync"
)

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	client *discogs.Client
	latest *cache.CollectionFile

	closers []func()
}

// newApp loads configuration, sets up logging and builds the Discogs client.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(cfg.LogConfig())

	client, err := discogs.NewClient(cfg.DiscogsCredentials(),
		discogs.WithBaseURL(cfg.Discogs.BaseURL),
		discogs.WithLogger(logger),
		discogs.WithPageInterval(cfg.Pacing.PageInterval),
		discogs.WithLowWater(cfg.Pacing.LowWater),
		discogs.WithCooldown(cfg.Pacing.Cooldown),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		latest: cache.NewCollectionFile(cfg.CollectionPath()),
	}, nil
}

// close releases everything opened by the app, newest first.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage is the snapshot backend plus the optional database.
type storage struct {
	store    cache.Store
	database *db.DB
	// shared is set when the snapshot itself lives in the database tables.
	shared bool
}

// mirror returns where downloads are copied, or nil. A snapshot kept in the
// database is not mirrored: it must change only when the cache is in use.
func (st *storage) mirror() sync.Mirror {
	if st.database == nil || st.shared {
		return nil
	}
	return st.database.Items()
}

// openStorage opens the configured snapshot backend. The database is opened
// whenever database.url is set, for the mirror and the run ledger.
func (a *app) openStorage(ctx context.Context) (*storage, error) {
	st, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}

	switch a.cfg.Cache.Backend {
	case "badger":
		bdb, err := cache.OpenBadger(a.cfg.BadgerPath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := bdb.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("closing badger")
			}
		})
		st.store = cache.NewBadgerStore(bdb)
	case "postgres":
		st.store = st.database.Snapshots()
		st.shared = true
	default:
		st.store = cache.NewFileStore(a.cfg.SnapshotPath())
	}

	a.logger.Debug().Str("backend", a.cfg.Cache.Backend).Bool("database", st.database != nil).Msg("storage opened")
	return st, nil
}

// openLedger opens only the database, when configured. Commands that never
// touch the snapshot use it to record their runs.
func (a *app) openLedger(ctx context.Context) (*storage, error) {
	st := &storage{}
	if a.cfg.Database.URL == "" {
		return st, nil
	}

	database, err := db.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, database.Close)
	if err := database.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	st.database = database
	return st, nil
}

// downloader builds the download service over st.
func (a *app) downloader(st *storage) *sync.Service {
	pipeline := enrich.New(a.client,
		enrich.WithPacing(a.cfg.EnrichPacing()),
		enrich.WithLogger(a.logger),
	)
	opts := []sync.Option{sync.WithLogger(a.logger)}
	if m := st.mirror(); m != nil {
		opts = append(opts, sync.WithMirror(m))
	}
	return sync.New(a.client, pipeline, st.store, a.latest, opts...)
}

// executor builds the write-back executor.
func (a *app) executor() *execute.Executor {
	return execute.New(a.client,
		execute.WithPacing(a.cfg.WritePacing()),
		execute.WithLogger(a.logger),
	)
}

// registry builds the run registry. Run logs go to stderr; with a database
// every finished run is recorded.
func (a *app) registry(st *storage) *runs.Registry {
	opts := []runs.Option{
		runs.WithLogger(a.logger),
		runs.WithOutput(zerolog.MultiLevelWriter(logging.Writer(a.cfg.LogConfig(), os.Stderr))),
	}
	if st != nil && st.database != nil {
		opts = append(opts, runs.WithLedger(st.database.Runs()))
	}
	return runs.NewRegistry(opts...)
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Package daemon composes the core's components into an fx application.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"convo/internal/bus"
	"convo/internal/call"
	"convo/internal/config"
	"convo/internal/kv"
	"convo/internal/lock"
	"convo/internal/logging"
	"convo/internal/media"
	"convo/internal/paths"
	"convo/internal/persist"
	"convo/internal/store"
)

// Params holds the resolved data directory passed to the fx module.
type Params struct {
	DataDir string // empty = use default ~/.convo
}

func (p Params) dataDir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	return paths.BaseDir()
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideKV,
			provideStore,
			provideDevice,
			provideRecorder,
			provideCallEngine,
			provideAdapter,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	return config.LoadOrDefault(paths.ConfigPath(p.dataDir()))
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(paths.LogPath(p.dataDir()))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	dataDir := p.dataDir()
	if err := paths.EnsureDirs(dataDir); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("dir", dataDir))
	l, err := lock.Acquire(dataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideKV(p Params, logger *zap.Logger) (*kv.DB, error) {
	dbPath := paths.DBPath(p.dataDir())
	db, err := kv.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("kv store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideStore(b *bus.Bus, logger *zap.Logger) *store.Store {
	return store.New(b, logger)
}

func provideDevice() media.CaptureDevice {
	// In-process capture: no real hardware binding is wired yet.
	return &media.SimDevice{}
}

func provideRecorder(p Params, device media.CaptureDevice) *media.Recorder {
	return media.NewRecorder(device, paths.MediaDir(p.dataDir()))
}

func provideCallEngine(s *store.Store, b *bus.Bus, logger *zap.Logger, cfg *config.Config, device media.CaptureDevice) *call.Engine {
	return call.NewEngine(s, b, logger, call.Config{
		DialDelay:   cfg.DialDelay(),
		EndedLinger: cfg.EndedLinger(),
		Probe:       func() error { return media.Probe(device) },
	})
}

func provideAdapter(db *kv.DB, s *store.Store, b *bus.Bus, logger *zap.Logger) *persist.Adapter {
	return persist.NewAdapter(db, s, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, adapter *persist.Adapter, lk *lock.Lock, db *kv.DB, engine *call.Engine, rec *media.Recorder, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			adapter.Hydrate()
			adapter.Start(context.Background())
			logger.Info("core ready")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if rec.Recording() {
				if _, err := rec.Stop(); err != nil {
					logger.Warn("error stopping recorder", zap.Error(err))
				}
			}
			adapter.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing kv store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

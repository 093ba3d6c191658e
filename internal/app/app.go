package app

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/internal/snapshot"
	"github.com/dolsel/livetv/pkg/api"
	"github.com/dolsel/livetv/pkg/api/auth"
	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/directory"
	"github.com/dolsel/livetv/pkg/gateway"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/store"
	"github.com/dolsel/livetv/pkg/telemetry"
)

// Build identifies the binary in logs and the version command.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// App groups server state and components.
type App struct {
	cfg   *config.Config
	build Build

	db        *store.DB
	dir       *directory.Replica
	snapshots *snapshot.Manager
	srv       *fasthttp.Server
}

// New opens the store and seeds the directory. It does not listen; call Run.
func New(cfg *config.Config, build Build) (*App, error) {
	db, err := store.Open(cfg.Storage.DBPath, store.Options{
		CacheSize:    cfg.Storage.CacheSize.Int64(),
		NoSync:       !cfg.Storage.SyncWrites(),
		DefaultLimit: cfg.Window.DefaultLimit,
		MaxLimit:     cfg.Window.MaxLimit,
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetStore(db)

	dir := directory.NewReplica(db)
	if err := dir.Seed(cfg.Directory.Users, cfg.Directory.Channels); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed directory: %w", err)
	}

	a := &App{
		cfg:       cfg,
		build:     build,
		db:        db,
		dir:       dir,
		snapshots: snapshot.New(cfg.Snapshot, db),
	}
	a.srv = a.newServer()
	return a, nil
}

func (a *App) newServer() *fasthttp.Server {
	deps := api.Deps{
		Gateway:   gateway.New(a.db, a.dir, a.dir),
		Directory: a.dir,
		Admin:     a.db,
		Ready:     a.db.Ready,
	}
	if a.cfg.Snapshot.Enabled {
		deps.Snapshots = a.snapshots
	}
	return &fasthttp.Server{
		Name:               "chatd",
		Handler:            api.NewHandler(deps, auth.FromConfig(a.cfg.Security)),
		ReadTimeout:        a.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:       a.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:        a.cfg.Server.IdleTimeout.Duration(),
		MaxRequestBodySize: int(a.cfg.Server.MaxBodySize.Int64()),
		ReadBufferSize:     16 * 1024,
		ReduceMemoryUsage:  true,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	logger.LogConfigSummary("chatd_config", a.cfg.Summary())
	logger.Info("chatd_starting", "version", a.build.Version, "commit", a.build.Commit, "built", a.build.Date, "addr", a.cfg.Addr())

	a.snapshots.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe(a.cfg.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("chatd_shutdown_requested")
	case err := <-errCh:
		if err != nil {
			logger.Error("http_server_failed", "error", err)
			_ = a.Close()
			return err
		}
	}
	return a.Shutdown(20 * time.Second)
}

// Shutdown stops the listener and closes the store, giving in-flight
// requests up to timeout to finish.
func (a *App) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- a.srv.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
	case <-time.After(timeout):
		logger.Warn("http_shutdown_timeout", "timeout", timeout)
	}
	return a.Close()
}

// Close stops the snapshot schedule, then closes the store. The store
// waits for operations still holding it, so requests that outlived the
// drain timeout finish or fail Transient rather than touching a closed db.
func (a *App) Close() error {
	a.snapshots.Stop()
	telemetry.SetStore(nil)
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	logger.Info("chatd_stopped")
	return nil
}

// Handler exposes the request pipeline, mainly for tests.
func (a *App) Handler() fasthttp.RequestHandler { return a.srv.Handler }

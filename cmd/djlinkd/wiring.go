package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/djlink/djlink/internal/config"
	"github.com/djlink/djlink/internal/event"
	"github.com/djlink/djlink/internal/reconcile"
	"github.com/djlink/djlink/internal/storage/composite"
	"github.com/djlink/djlink/internal/storage/dolt"
	"github.com/djlink/djlink/internal/storage/postgres"
	"github.com/djlink/djlink/internal/telemetry"
	"github.com/djlink/djlink/internal/usecase"
)

const defaultLockRetry = 200 * time.Millisecond

// app holds everything a subcommand needs, wired once per invocation.
type app struct {
	cfg    *config.Link
	logger telemetry.Logger
	lock   *flock.Flock

	source *postgres.Store
	local  *dolt.Store
	coord  *composite.Coordinator
	svc    *usecase.Service
}

// newApp loads cfgPath, opens both connections, and takes the advisory
// lock that keeps two invocations against the same link from racing
// each other's unit of work (spec §5 assumes a single caller; the CLI
// enforces it locally the way the teacher's internal/lockfile does for
// its own store).
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := telemetry.New(cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Clean(cfgPath) + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, defaultLockRetry)
	if err != nil {
		return nil, fmt.Errorf("djlinkd: acquiring lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("djlinkd: another invocation holds %s", lockPath)
	}

	source, err := postgres.Open(ctx, cfg.SourceDSN)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	local, err := dolt.Open(ctx, dolt.Config{
		Path:           cfg.LocalPath,
		CommitterName:  cfg.CommitterName,
		CommitterEmail: cfg.CommitterEmail,
	})
	if err != nil {
		source.Close()
		_ = lock.Unlock()
		return nil, err
	}

	coord := composite.New(source, local, postgres.NewRowFacade(source),
		composite.Endpoint{RemoteHost: cfg.RemoteHost, RemoteSchema: cfg.RemoteSchema}, logger)

	bus := event.NewBus()
	bus.Register(loggingHandler{logger: logger})

	var rec reconcile.Reconciler = coord
	svc := usecase.New(coord, bus, rec)

	return &app{cfg: cfg, logger: logger, lock: lock, source: source, local: local, coord: coord, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.local.Close(); err != nil {
		a.logger.Error(err, "closing local connection")
	}
	a.source.Close()
	if err := a.lock.Unlock(); err != nil {
		a.logger.Error(err, "releasing lock")
	}
}

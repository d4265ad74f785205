package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/identifier"
)

const schema = `
CREATE TABLE source_t (id TEXT PRIMARY KEY);
CREATE TABLE outbound_t_outbound (
	id TEXT PRIMARY KEY REFERENCES source_t(id),
	remote_host TEXT,
	remote_schema TEXT,
	process TEXT,
	is_flagged BOOLEAN NOT NULL DEFAULT false
);
CREATE TABLE outbound_t_outbound_flagged (id TEXT PRIMARY KEY REFERENCES outbound_t_outbound(id));
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres testcontainer in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("djlink"),
		tcpostgres.WithUsername("djlink"),
		tcpostgres.WithPassword("djlink"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := store.pool.Exec(ctx, schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return store
}

func TestStartProcessThenFinishProcess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := identifier.New("widget-1")

	if _, err := store.pool.Exec(ctx, "INSERT INTO source_t (id) VALUES ($1)", id.String()); err != nil {
		t.Fatalf("seeding source_t: %v", err)
	}

	tx, err := store.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := StartProcess(ctx, tx, id, entity.Pull, "warehouse.internal", "mirror"); err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	roTx, err := store.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = roTx.Rollback(ctx) }()

	outbound, err := ReadOutbound(ctx, roTx)
	if err != nil {
		t.Fatalf("ReadOutbound() error = %v", err)
	}
	if !outbound.Contains(id) {
		t.Fatalf("want %s in outbound after StartProcess, got %v", id, outbound)
	}

	active, err := ReadActiveProcesses(ctx, roTx)
	if err != nil {
		t.Fatalf("ReadActiveProcesses() error = %v", err)
	}
	if active[id] != entity.Pull {
		t.Fatalf("want active process PULL for %s, got %v", id, active[id])
	}
}

func TestDeprecateInsertsFlaggedRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := identifier.New("widget-2")

	if _, err := store.pool.Exec(ctx, "INSERT INTO source_t (id) VALUES ($1)", id.String()); err != nil {
		t.Fatalf("seeding source_t: %v", err)
	}

	tx, err := store.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := StartProcess(ctx, tx, id, entity.Pull, "warehouse.internal", "mirror"); err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	if err := Deprecate(ctx, tx, id); err != nil {
		t.Fatalf("Deprecate() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	roTx, err := store.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = roTx.Rollback(ctx) }()

	flagged, err := ReadFlagged(ctx, roTx)
	if err != nil {
		t.Fatalf("ReadFlagged() error = %v", err)
	}
	if !flagged.Contains(id) {
		t.Fatalf("want %s flagged after Deprecate, got %v", id, flagged)
	}
}

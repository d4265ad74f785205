package dolt

import (
	"context"
	"database/sql"
	"testing"
	"time"

	// Registers the "mysql" database/sql driver used to talk to the
	// containerized dolt-sql-server (the embedded "dolt" driver this
	// package otherwise uses only speaks to an on-disk database).
	_ "github.com/go-sql-driver/mysql"

	"github.com/testcontainers/testcontainers-go"
	tcdolt "github.com/testcontainers/testcontainers-go/modules/dolt"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/djlink/djlink/internal/identifier"
)

const schema = `
CREATE TABLE local_t (id VARCHAR(255) PRIMARY KEY, payload LONGBLOB);
CREATE TABLE local_t_inbound (id VARCHAR(255) PRIMARY KEY);
CREATE TABLE local_t_flagged (id VARCHAR(255) PRIMARY KEY);
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping dolt testcontainer in short mode")
	}
	ctx := context.Background()

	container, err := tcdolt.Run(ctx, "dolthub/dolt-sql-server:latest",
		tcdolt.WithDatabase("djlink_local"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server ready").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting dolt container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return &Store{db: db}
}

func TestAddToLocalThenRemoveFromLocal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := identifier.New("widget-1")

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return AddToLocal(ctx, tx, id, []byte("payload"))
	}); err != nil {
		t.Fatalf("AddToLocal() error = %v", err)
	}

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		local, err := ReadLocal(ctx, tx)
		if err != nil {
			return err
		}
		if !local.Contains(id) {
			t.Fatalf("want %s in local_t after AddToLocal, got %v", id, local)
		}
		return nil
	}); err != nil {
		t.Fatalf("reading back: %v", err)
	}

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return RemoveFromLocal(ctx, tx, id)
	}); err != nil {
		t.Fatalf("RemoveFromLocal() error = %v", err)
	}

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		local, err := ReadLocal(ctx, tx)
		if err != nil {
			return err
		}
		if local.Contains(id) {
			t.Fatalf("want %s removed from local_t, still present", id)
		}
		return nil
	}); err != nil {
		t.Fatalf("reading back: %v", err)
	}
}

func TestSetLocalFlaggedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := identifier.New("widget-2")

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return AddToLocal(ctx, tx, id, nil)
	}); err != nil {
		t.Fatalf("seeding local_t: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
			return SetLocalFlagged(ctx, tx, id)
		}); err != nil {
			t.Fatalf("SetLocalFlagged() call %d error = %v", i, err)
		}
	}

	if err := store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		flagged, err := ReadLocalFlagged(ctx, tx)
		if err != nil {
			return err
		}
		if !flagged.Contains(id) {
			t.Fatalf("want %s flagged, got %v", id, flagged)
		}
		return nil
	}); err != nil {
		t.Fatalf("reading back: %v", err)
	}
}

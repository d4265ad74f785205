// Package dolt implements the local-host half of the LinkGateway: the
// connection that owns local.T, local.T_Inbound, and local.T.Flagged
// (spec §6). It is grounded on the teacher's internal/storage/dolt
// package — the retry-with-backoff RunInTransaction loop and the OTel
// tracer/meter wiring are the same shape, adapted from a single-store
// CRUD backend to one half of a two-connection replication gateway.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Registers the "dolt" database/sql driver.
	_ "github.com/dolthub/driver"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/djlink/djlink/internal/identifier"
)

var tracer = otel.Tracer("github.com/djlink/djlink/storage/dolt")

var metrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/djlink/djlink/storage/dolt")
	metrics.retryCount, _ = m.Int64Counter("djlink.local.retry_count",
		metric.WithDescription("local-connection transactions retried after a serialization conflict"),
		metric.WithUnit("{retry}"),
	)
}

// Config describes how to reach the local Dolt database.
type Config struct {
	// Path is the directory holding the embedded Dolt database.
	Path string
	// CommitterName/CommitterEmail are attributed to Dolt's internal
	// commit history for the local mirror, the way the teacher's own
	// embedded mode DSN requires.
	CommitterName  string
	CommitterEmail string
}

// Store is the local-host connection. It exposes the read/write
// primitives internal/storage/composite needs to implement
// gateway.LinkGateway's local half; it never implements LinkGateway on
// its own, since no single connection can satisfy the cross-connection
// contract.
type Store struct {
	db *sql.DB
}

// Open connects to the embedded Dolt database at cfg.Path, creating it
// if absent.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("file://%s?commitname=%s&commitemail=%s",
		cfg.Path, cfg.CommitterName, cfg.CommitterEmail)

	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("dolt: open %s: %w", cfg.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dolt: ping %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// NewStoreForTest wraps an already-open *sql.DB as a Store, bypassing
// Open's embedded-driver DSN construction. It exists so integration
// tests (and composite's, which drives a containerized dolt-sql-server
// over the network) can hand in a *sql.DB opened with the "mysql"
// driver instead of the embedded "dolt" one.
func NewStoreForTest(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw *sql.DB for composite's two-phase coordinator,
// which needs to begin/commit this half's transaction in lockstep with
// the source half.
func (s *Store) DB() *sql.DB {
	return s.db
}

func newTransactionRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second
	return bo
}

// RunInTransaction executes fn within a local transaction, retrying on
// a Dolt/MySQL-protocol serialization conflict with exponential
// backoff — the same retry shape as the teacher's DoltStore.RunInTransaction,
// narrowed to this package's smaller Tx surface.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, span := tracer.Start(ctx, "dolt.RunInTransaction", trace.WithAttributes(
		attribute.String("db.system", "dolt"),
	))
	defer span.End()

	attempts := 0
	bo := newTransactionRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("dolt: begin: %w", err))
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isSerializationError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isSerializationError(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("dolt: commit: %w", err))
		}
		return nil
	}, backoff.WithContext(bo, ctx))

	if attempts > 1 {
		metrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

// ReadLocal returns the identifiers currently present in local.T.
func ReadLocal(ctx context.Context, tx *sql.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM local_t")
}

// ReadInbound returns the identifiers present in local.T_Inbound — the
// local mirror of the outbound ledger's assignment, used to enforce
// the foreign-key-style invariant locally (spec §6).
func ReadInbound(ctx context.Context, tx *sql.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM local_t_inbound")
}

// ReadLocalFlagged returns the identifiers currently tainted in the
// local mirror (local.T.Flagged).
func ReadLocalFlagged(ctx context.Context, tx *sql.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM local_t_flagged")
}

func readIDColumn(ctx context.Context, tx *sql.Tx, query string) (identifier.Set, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dolt: %s: %w", query, err)
	}
	defer rows.Close()

	set := identifier.NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("dolt: scanning row: %w", err)
		}
		set.Add(identifier.New(id))
	}
	return set, rows.Err()
}

// AddToLocal inserts id's payload into local.T and its ledger mirror
// into local.T_Inbound, for the ADD_TO_LOCAL command.
func AddToLocal(ctx context.Context, tx *sql.Tx, id identifier.ID, payload []byte) error {
	if _, err := tx.ExecContext(ctx, "INSERT INTO local_t_inbound (id) VALUES (?)", id.String()); err != nil {
		return fmt.Errorf("dolt: insert local_t_inbound: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO local_t (id, payload) VALUES (?, ?)", id.String(), payload); err != nil {
		return fmt.Errorf("dolt: insert local_t: %w", err)
	}
	return nil
}

// RemoveFromLocal deletes id from local.T and local.T_Inbound, for the
// REMOVE_FROM_LOCAL command. local.T is removed first so a concurrent
// reader never observes a payload row without its ledger mirror.
func RemoveFromLocal(ctx context.Context, tx *sql.Tx, id identifier.ID) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM local_t WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("dolt: delete local_t: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM local_t_inbound WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("dolt: delete local_t_inbound: %w", err)
	}
	return nil
}

// SetLocalFlagged inserts a local taint row for id, idempotently, used
// by the reconciler's step 3 (spec §4.5).
func SetLocalFlagged(ctx context.Context, tx *sql.Tx, id identifier.ID) error {
	_, err := tx.ExecContext(ctx, "INSERT IGNORE INTO local_t_flagged (id) VALUES (?)", id.String())
	if err != nil {
		return fmt.Errorf("dolt: insert local_t_flagged: %w", err)
	}
	return nil
}

// isSerializationError classifies a Dolt/MySQL-protocol error as a
// transient serialization conflict worth retrying, mirroring the
// teacher's isSerializationError for the storage/dolt package. Error
// 1213 is a deadlock, 1105 is Dolt's generic "unable to serialize"
// condition.
func isSerializationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"Error 1213", "Error 1105", "serialization failure", "Deadlock found"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

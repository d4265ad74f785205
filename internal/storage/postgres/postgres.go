// Package postgres implements the source-host half of the LinkGateway:
// the connection that owns source.T (read-only to the core) and the
// outbound ledger, outbound.T_Outbound / outbound.T_Outbound.Flagged
// (spec §6). pgx is recovered from the rest of the retrieved pack
// (jordigilh-kubernaut), which reaches for it wherever a service owns a
// genuine second relational backend distinct from the embedded/MySQL
// store the issue tracker itself favors.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/identifier"
)

// Store is the source-host connection.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the source database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the raw *pgxpool.Pool for composite's two-phase
// coordinator.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// ReadSource returns every identifier currently present in source.T.
// The core only ever reads this table — user code outside this module
// owns writes to it.
func ReadSource(ctx context.Context, tx pgx.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM source_t")
}

// ReadOutbound returns every identifier present in
// outbound.T_Outbound.
func ReadOutbound(ctx context.Context, tx pgx.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM outbound_t_outbound")
}

// ReadFlagged returns every identifier present in
// outbound.T_Outbound.Flagged — the taint set.
func ReadFlagged(ctx context.Context, tx pgx.Tx) (identifier.Set, error) {
	return readIDColumn(ctx, tx, "SELECT id FROM outbound_t_outbound_flagged")
}

// ReadActiveProcesses returns the active-process column of
// outbound.T_Outbound for every row that has one set.
func ReadActiveProcesses(ctx context.Context, tx pgx.Tx) (map[identifier.ID]entity.Process, error) {
	rows, err := tx.Query(ctx, "SELECT id, process FROM outbound_t_outbound WHERE process IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("postgres: reading active processes: %w", err)
	}
	defer rows.Close()

	out := make(map[identifier.ID]entity.Process)
	for rows.Next() {
		var id, proc string
		if err := rows.Scan(&id, &proc); err != nil {
			return nil, fmt.Errorf("postgres: scanning active process row: %w", err)
		}
		switch proc {
		case "PULL":
			out[identifier.New(id)] = entity.Pull
		case "DELETE":
			out[identifier.New(id)] = entity.Delete
		}
	}
	return out, rows.Err()
}

func readIDColumn(ctx context.Context, tx pgx.Tx, query string) (identifier.Set, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", query, err)
	}
	defer rows.Close()

	set := identifier.NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scanning row: %w", err)
		}
		set.Add(identifier.New(id))
	}
	return set, rows.Err()
}

// StartProcess records a new active process for id on the outbound
// ledger, for START_PULL_PROCESS / START_DELETE_PROCESS. remoteHost and
// remoteSchema are only meaningful the first time an identifier is
// assigned (PULL); DELETE reuses whatever the row already carries.
func StartProcess(ctx context.Context, tx pgx.Tx, id identifier.ID, proc entity.Process, remoteHost, remoteSchema string) error {
	if proc == entity.Pull {
		if _, err := tx.Exec(ctx,
			`INSERT INTO outbound_t_outbound (id, remote_host, remote_schema, process, is_flagged)
			 VALUES ($1, $2, $3, 'PULL', false)`,
			id.String(), remoteHost, remoteSchema); err != nil {
			return fmt.Errorf("postgres: insert outbound_t_outbound: %w", err)
		}
		return nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE outbound_t_outbound SET process = 'DELETE' WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("postgres: set process=DELETE: %w", err)
	}
	return nil
}

// FinishProcess clears id's active process on the outbound ledger, for
// FINISH_PULL_PROCESS. FINISH_DELETE_PROCESS removes the row instead
// (RemoveOutbound).
func FinishProcess(ctx context.Context, tx pgx.Tx, id identifier.ID) error {
	_, err := tx.Exec(ctx, `UPDATE outbound_t_outbound SET process = NULL WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("postgres: clear process: %w", err)
	}
	return nil
}

// RemoveOutbound deletes id's outbound ledger row entirely, for the
// FINISH_DELETE_PROCESS step that hands the identifier back to Idle,
// and for the reconciler's stale-assignment cleanup (spec §4.5 step 2).
func RemoveOutbound(ctx context.Context, tx pgx.Tx, id identifier.ID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM outbound_t_outbound WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("postgres: delete outbound_t_outbound: %w", err)
	}
	return nil
}

// Deprecate marks id as flagged without removing its outbound row —
// Deprecated entities stay {SOURCE, OUTBOUND} with no active process
// and the taint flag set (spec §3).
func Deprecate(ctx context.Context, tx pgx.Tx, id identifier.ID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE outbound_t_outbound SET process = NULL WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("postgres: clear process for deprecation: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO outbound_t_outbound_flagged (id) VALUES ($1) ON CONFLICT DO NOTHING`, id.String()); err != nil {
		return fmt.Errorf("postgres: insert outbound_t_outbound_flagged: %w", err)
	}
	return nil
}

// RemoveFlagged deletes id's taint row, for the reconciler's step 1
// (spec §4.5): a taint with nothing left to act on.
func RemoveFlagged(ctx context.Context, tx pgx.Tx, id identifier.ID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM outbound_t_outbound_flagged WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("postgres: delete outbound_t_outbound_flagged: %w", err)
	}
	return nil
}

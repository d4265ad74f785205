// Package composite implements gateway.LinkGateway by coordinating the
// source-host postgres.Store and the local-host dolt.Store inside a
// single logical transaction spanning both connections (spec §4.3,
// §5). It is the Go analogue of the two-phase local coordinator
// sketched in spec §9's Design Notes: prepare both, commit local first
// (the user-visible artefact), then the source/outbound side.
package composite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker"

	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/gateway"
	"github.com/djlink/djlink/internal/identifier"
	"github.com/djlink/djlink/internal/link"
	"github.com/djlink/djlink/internal/storage/dolt"
	"github.com/djlink/djlink/internal/storage/postgres"
	"github.com/djlink/djlink/internal/telemetry"
)

// RowFacade fetches the payload bytes for an identifier's source row.
// It is the Go analogue of the relational-table façade spec.md places
// out of scope ("fetching rows and blobs ... consumed through a
// LinkGateway port"): Coordinator consumes it, but does not implement
// it — a concrete façade is the caller's responsibility.
type RowFacade interface {
	FetchPayload(ctx context.Context, id identifier.ID) ([]byte, error)
}

// Endpoint names the remote host/schema recorded on every outbound
// ledger row this link hands out, per spec §6's T_Outbound columns.
type Endpoint struct {
	RemoteHost   string
	RemoteSchema string
}

// Coordinator is a gateway.LinkGateway implementation spanning a
// postgres.Store (source) and a dolt.Store (local).
type Coordinator struct {
	Source   *postgres.Store
	Local    *dolt.Store
	Facade   RowFacade
	Endpoint Endpoint
	Logger   telemetry.Logger

	breaker *gobreaker.CircuitBreaker
}

// New constructs a Coordinator. The circuit breaker wraps each Apply
// attempt and trips after three consecutive failed attempts of any kind
// (partial commits included). It then rejects Apply calls for a minute,
// giving a reconciliation pass (internal/reconcile) a window to run
// before new PULL/DELETE invocations can compound the inconsistency
// (spec §7, §9's resolution of the partial-commit question). After the
// minute one probe attempt is let through; Reconcile does not reset it.
func New(source *postgres.Store, local *dolt.Store, facade RowFacade, endpoint Endpoint, logger telemetry.Logger) *Coordinator {
	c := &Coordinator{Source: source, Local: local, Facade: facade, Endpoint: endpoint, Logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "djlink.composite.apply",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

var _ gateway.LinkGateway = (*Coordinator)(nil)

// CreateLink reads a consistent snapshot from both connections and
// returns the Link derived from it (spec §4.3).
func (c *Coordinator) CreateLink(ctx context.Context) (link.Link, error) {
	var snap link.Snapshot

	err := pgx.BeginTxFunc(ctx, c.Source.Pool(), pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		if snap.Source, err = postgres.ReadSource(ctx, tx); err != nil {
			return err
		}
		if snap.Outbound, err = postgres.ReadOutbound(ctx, tx); err != nil {
			return err
		}
		if snap.Flagged, err = postgres.ReadFlagged(ctx, tx); err != nil {
			return err
		}
		snap.ActiveProcesses, err = postgres.ReadActiveProcesses(ctx, tx)
		return err
	})
	if err != nil {
		return link.Link{}, fmt.Errorf("%w: reading source snapshot: %v", gateway.ErrIO, err)
	}

	err = c.Local.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		snap.Local, err = dolt.ReadLocal(ctx, tx)
		return err
	})
	if err != nil {
		return link.Link{}, fmt.Errorf("%w: reading local snapshot: %v", gateway.ErrIO, err)
	}

	return link.New(snap), nil
}

// ListIdleEntities returns the identifiers currently in Idle.
func (c *Coordinator) ListIdleEntities(ctx context.Context) ([]identifier.ID, error) {
	l, err := c.CreateLink(ctx)
	if err != nil {
		return nil, err
	}
	entities := l.InState(entity.Idle)
	out := make([]identifier.ID, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out, nil
}

// Apply executes every command in updates across both connections in
// one logical transaction, in the order gateway.Order produces (spec
// §4.1). It retries the whole attempt on a retryable Postgres
// serialization/deadlock error (see isRetryable). A partial commit —
// local commit succeeded, source commit failed — is returned at once
// as ErrPartialCommit and counts as a failure toward tripping the
// circuit breaker.
func (c *Coordinator) Apply(ctx context.Context, updates []entity.Update) error {
	ordered := gateway.Order(updates)
	if len(ordered) == 0 {
		return nil
	}

	correlationID := uuid.New().String()
	logger := c.Logger.WithValues("correlation_id", correlationID, "commands", len(ordered))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.applyOnce(ctx, ordered, correlationID)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gateway.ErrPartialCommit) {
			logger.Error(err, "partial commit, counted toward circuit breaker", "attempt", attempt)
			return backoff.Permanent(err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if isRetryable(err) {
			logger.Info("retrying apply after transient error", "attempt", attempt, "error", err.Error())
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// applyOnce runs a single two-phase attempt: prepare both connections,
// commit local first, then the source connection. If the source commit
// fails after local already committed, it returns ErrPartialCommit —
// the local write is now ahead of the ledger and only a reconciliation
// pass can restore spec §3's invariants.
func (c *Coordinator) applyOnce(ctx context.Context, ordered []gateway.Ordered, correlationID string) error {
	sourceTx, err := c.Source.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin source tx: %v", gateway.ErrIO, err)
	}
	defer func() { _ = sourceTx.Rollback(ctx) }()

	localTx, err := c.Local.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin local tx: %v", gateway.ErrIO, err)
	}
	defer func() { _ = localTx.Rollback() }()

	for _, o := range ordered {
		if err := c.applyCommand(ctx, sourceTx, localTx, o); err != nil {
			return fmt.Errorf("%w: applying %s for %s: %w", gateway.ErrIO, o.Command, o.ID, err)
		}
	}

	if err := localTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit local: %w", gateway.ErrIO, err)
	}

	if err := sourceTx.Commit(ctx); err != nil {
		// The user-visible local artefact already committed; the
		// outbound ledger is now stale. This is exactly the
		// non-recoverable inconsistency of spec §7.
		return fmt.Errorf("%w: commit source after local committed (correlation_id=%s): %v",
			gateway.ErrPartialCommit, correlationID, err)
	}
	return nil
}

func (c *Coordinator) applyCommand(ctx context.Context, sourceTx pgx.Tx, localTx *sql.Tx, o gateway.Ordered) error {
	switch o.Command {
	case entity.StartPullProcess:
		return postgres.StartProcess(ctx, sourceTx, o.ID, entity.Pull, c.Endpoint.RemoteHost, c.Endpoint.RemoteSchema)
	case entity.AddToLocal:
		payload, err := c.Facade.FetchPayload(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("fetching payload: %w", err)
		}
		return dolt.AddToLocal(ctx, localTx, o.ID, payload)
	case entity.FinishPullProcess:
		return postgres.FinishProcess(ctx, sourceTx, o.ID)
	case entity.StartDeleteProcess:
		return postgres.StartProcess(ctx, sourceTx, o.ID, entity.Delete, c.Endpoint.RemoteHost, c.Endpoint.RemoteSchema)
	case entity.RemoveFromLocal:
		return dolt.RemoveFromLocal(ctx, localTx, o.ID)
	case entity.FinishDeleteProcess:
		return postgres.RemoveOutbound(ctx, sourceTx, o.ID)
	case entity.Deprecate:
		return postgres.Deprecate(ctx, sourceTx, o.ID)
	default:
		return fmt.Errorf("composite: unknown command %s", o.Command)
	}
}

// isRetryable classifies a wrapped gateway.ErrIO as a transient
// serialization/deadlock condition, the two-connection analogue of the
// teacher's single-connection isSerializationError. It recognises only
// errors carrying a Postgres SQLSTATE (the pgx side); a Dolt-side
// conflict on the local connection is not classified as retryable.
func isRetryable(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		switch pgErr.SQLState() {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}

package postgres

import (
	"context"
	"fmt"

	"github.com/djlink/djlink/internal/identifier"
)

// RowFacade is the minimal concrete implementation of
// composite.RowFacade this module ships: it serializes source_t's row
// for id as JSON using Postgres' own row_to_json, rather than
// hand-mapping columns. The façade spec.md places out of scope
// (link/external/datajoint/facade.py) is expected to be richer than
// this in a real deployment; this is only what cmd/djlinkd needs to
// exercise ADD_TO_LOCAL end to end.
type RowFacade struct {
	store *Store
}

// NewRowFacade wraps store as a composite.RowFacade.
func NewRowFacade(store *Store) RowFacade {
	return RowFacade{store: store}
}

// FetchPayload reads id's row_to_json(source_t) payload.
func (f RowFacade) FetchPayload(ctx context.Context, id identifier.ID) ([]byte, error) {
	var payload []byte
	err := f.store.pool.QueryRow(ctx,
		`SELECT row_to_json(source_t)::text FROM source_t WHERE id = $1`, id.String(),
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetching payload for %s: %w", id, err)
	}
	return payload, nil
}

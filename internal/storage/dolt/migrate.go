package dolt

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the local connection's local_t/local_t_inbound/
// local_t_flagged schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectMySQL, s.db, migrationsFS)
	if err != nil {
		return fmt.Errorf("dolt: goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("dolt: migrating: %w", err)
	}
	return nil
}

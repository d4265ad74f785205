package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to both halves of the link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.source.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: source: %w", err)
			}
			if err := a.local.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: local: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render("migrated"))
			return nil
		},
	}
}

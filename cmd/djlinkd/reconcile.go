package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run the persisted-flag reconciler once, outside a pull/delete invocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.coord.Reconcile(cmd.Context()); err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render("reconciled"))
			return nil
		},
	}
}

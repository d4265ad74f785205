package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Drain in-flight pull/delete processes without originating new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Process(cmd.Context()); err != nil {
				return fmt.Errorf("process: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render("processed"))
			return nil
		},
	}
}

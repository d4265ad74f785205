package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <id...>",
		Short: "Pull identifiers into the local mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			requested := parseIdentifiers(args)
			if err := a.svc.Pull(cmd.Context(), requested); err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render(fmt.Sprintf("pulled %d identifier(s)", requested.Len())))
			return nil
		},
	}
}

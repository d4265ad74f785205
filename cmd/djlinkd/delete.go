package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "delete <id...>",
		Short: "Delete identifiers from the local mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requested := parseIdentifiers(args)

			if !assumeYes {
				confirmed := false
				prompt := huh.NewConfirm().
					Title(fmt.Sprintf("Delete %d identifier(s)?", requested.Len())).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed)
				if err := prompt.Run(); err != nil {
					return fmt.Errorf("delete: confirmation prompt: %w", err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("cancelled"))
					return nil
				}
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Delete(cmd.Context(), requested); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render(fmt.Sprintf("deleted %d identifier(s)", requested.Len())))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the interactive confirmation prompt")
	return cmd
}

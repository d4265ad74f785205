package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/djlink/djlink/internal/event"
	"github.com/djlink/djlink/internal/identifier"
)

// captureIdleHandler records the identifiers an IdleEntitiesListed event
// carries so the CLI can print them after the use case returns — the
// bus otherwise only fans events out to registered subscribers, it
// never hands them back to the caller directly.
type captureIdleHandler struct {
	ids *identifier.Set
}

func (captureIdleHandler) ID() string                   { return "djlinkd.capture-idle" }
func (captureIdleHandler) Handles() []event.Type         { return []event.Type{event.IdleEntitiesListed} }
func (captureIdleHandler) Priority() int                 { return 10 }
func (h captureIdleHandler) Handle(_ context.Context, e event.Event) error {
	*h.ids = e.Identifiers
	return nil
}

func newListIdleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-idle",
		Short: "List identifiers currently Idle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var ids identifier.Set
			a.svc.Bus.Register(captureIdleHandler{ids: &ids})

			if err := a.svc.ListIdle(cmd.Context()); err != nil {
				return fmt.Errorf("list-idle: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%d idle identifier(s)", ids.Len())))
			for _, id := range ids.Sorted() {
				fmt.Fprintln(out, idStyle.Render(id.String()))
			}
			return nil
		},
	}
}

// Command djlinkd drives the PULL/DELETE/LIST_IDLE/PROCESS use cases of
// a single link against its source and local connections. Each
// invocation loads one link config, takes an advisory lock on it for
// the duration of the command, and exits — there is no resident
// daemon mode here, in the same one-shot-command-runner shape as the
// teacher's own CLI subcommands before daemon mode is layered on top.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "djlinkd",
		Short:         "djlink replication state machine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "link.toml", "path to the link config (TOML or YAML)")

	root.AddCommand(
		newMigrateCmd(),
		newPullCmd(),
		newDeleteCmd(),
		newListIdleCmd(),
		newProcessCmd(),
		newReconcileCmd(),
	)
	return root
}

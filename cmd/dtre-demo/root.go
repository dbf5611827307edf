// Command dtre-demo drives the banking example (examples/bank) through the
// replay engine from the command line: replay a transfer sequence, compare
// two independently-produced results, or analyze the impact of migrating a
// transfer sequence from one fee-policy version to another. Grounded on the
// teacher's internal/cli root command, generalized from its concept-spec
// subcommands to the replay/compare/migrate trio this engine exposes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtre-go/dtre/internal/cliutil"
)

// RootOptions holds global flags shared by every subcommand.
type RootOptions struct {
	JSON    bool
	Verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "dtre-demo",
		Short:         "Replay, compare, and migrate transfer sequences through the bank example",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "emit machine-readable JSON instead of text")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newCompareCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cliutil.GetExitCode(err))
	}
}

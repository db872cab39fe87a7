// Command reindexer drives the regeneration engine's CLI surface: archive,
// regen, regen-step, and check.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cosmos-archival/reindexer/server/cmd"
)

func main() {
	root := &cobra.Command{
		Use:           "reindexer",
		Short:         "Reindex a proof-of-stake chain's historical event stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		archiveCmd(),
		regenCmd(),
		regenStepCmd(),
		checkCmd(),
	)

	if err := cmd.Execute(root, "REINDEXER"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

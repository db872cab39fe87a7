package main

import (
	"github.com/spf13/cobra"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/index"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
	"github.com/cosmos-archival/reindexer/internal/xlog"
	"github.com/cosmos-archival/reindexer/plan"
	"github.com/cosmos-archival/reindexer/regen"
	"github.com/cosmos-archival/reindexer/source"
)

// regenStepCmd executes a single truncated plan against a specified
// [start, stop]. `regen` re-execs this command once per drive step
// (InitThenRunTo or RunTo entry) to isolate each step's process-wide state;
// it is also safe, and useful for debugging, to invoke directly.
func regenStepCmd() *cobra.Command {
	var (
		archivePath   string
		chainID       string
		workingDir    string
		databaseURL   string
		remoteURL     string
		allowExisting bool
		start         int64
		stop          int64
		hasStart      bool
		hasStop       bool
	)

	c := &cobra.Command{
		Use:   "regen-step",
		Short: "Execute a single truncated regeneration plan against [start, stop]",
		RunE: func(c *cobra.Command, args []string) error {
			logOpts, err := xlog.OptionsFromFlags(c.Flags())
			if err != nil {
				return err
			}
			logger := xlog.New(logOpts)

			p, ok := plan.FromChainID(chainID)
			if !ok {
				return xerrors.PlanInfeasible.Newf("no registered plan for chain id %q", chainID)
			}

			var startPtr, stopPtr *int64
			if hasStart {
				startPtr = &start
			}
			if hasStop {
				stopPtr = &stop
			}
			truncated := p.Truncate(startPtr, stopPtr)

			a, err := archive.Open(c.Context(), archivePath, chainID)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := plan.Feasible(c.Context(), truncated, a); err != nil {
				return err
			}

			idx, err := index.Open(c.Context(), databaseURL, allowExisting)
			if err != nil {
				return err
			}
			defer idx.Close()

			var remote source.Source
			if remoteURL != "" {
				remote = source.NewRemoteSource(remoteURL)
			}

			r := &regen.Regenerator{
				Registry:   defaultRegistry(),
				Archive:    a,
				Indexer:    idx,
				Remote:     remote,
				WorkingDir: workingDir,
				Logger:     logger,
			}
			return r.Run(c.Context(), truncated)
		},
	}

	c.Flags().StringVar(&archivePath, "archive-path", "", "path to the archive sqlite file")
	c.Flags().StringVar(&chainID, "chain-id", "", "chain id to regenerate")
	c.Flags().StringVar(&workingDir, "working-dir", "", "app-version working directory")
	c.Flags().StringVar(&databaseURL, "database-url", "", "event index postgres connection string")
	c.Flags().StringVar(&remoteURL, "remote-url", "", "optional remote node RPC base URL to tail beyond the archive")
	c.Flags().BoolVar(&allowExisting, "allow-existing-data", false, "skip already-indexed blocks/txs instead of failing")
	c.Flags().Int64Var(&start, "start", 0, "last already-indexed height (truncation lower bound)")
	c.Flags().Int64Var(&stop, "stop", 0, "inclusive truncation upper bound")
	c.PreRunE = func(c *cobra.Command, args []string) error {
		hasStart = c.Flags().Changed("start")
		hasStop = c.Flags().Changed("stop")
		return nil
	}
	return c
}

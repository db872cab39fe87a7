package main

import (
	"context"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos-archival/reindexer/index"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
	"github.com/cosmos-archival/reindexer/internal/xlog"
	"github.com/cosmos-archival/reindexer/plan"
)

// regenCmd drives a chain id's full regeneration plan by re-executing this
// same binary's `regen-step` subcommand once per drive step, so a version's
// runtime panicking or calling os.Exit takes down only the child process,
// never the orchestrator. Any Migrate entries sharing a drive step's
// starting height ride along in that step's subprocess invocation, since
// Plan.Truncate keeps them together with the step that follows them.
func regenCmd() *cobra.Command {
	var (
		archivePath   string
		chainID       string
		workingDir    string
		databaseURL   string
		remoteURL     string
		allowExisting bool
		clean         bool
		start         int64
		stop          int64
		hasStart      bool
		hasStop       bool
	)

	c := &cobra.Command{
		Use:   "regen",
		Short: "Regenerate a chain's full event stream, one subprocess per plan step",
		RunE: func(c *cobra.Command, args []string) error {
			logOpts, err := xlog.OptionsFromFlags(c.Flags())
			if err != nil {
				return err
			}
			logger := xlog.New(logOpts)

			if clean {
				if err := os.RemoveAll(workingDir); err != nil {
					return xerrors.VersionRuntime.Wrap(err, "cleaning working directory")
				}
			}

			p, ok := plan.FromChainID(chainID)
			if !ok {
				return xerrors.PlanInfeasible.Newf("no registered plan for chain id %q", chainID)
			}

			var startPtr *int64
			if hasStart {
				startPtr = &start
			} else if !allowExisting && databaseURL != "" {
				startPtr, err = lastIndexedHeight(c.Context(), databaseURL)
				if err != nil {
					return err
				}
			}
			var stopPtr *int64
			if hasStop {
				stopPtr = &stop
			}

			truncated := p.Truncate(startPtr, stopPtr)

			runningStart := startPtr
			for _, e := range truncated.Entries {
				var stepStop *int64
				switch step := e.Step.(type) {
				case plan.InitThenRunTo:
					stepStop = step.LastBlock
				case plan.RunTo:
					stepStop = step.LastBlock
				case plan.Migrate:
					continue
				default:
					continue
				}

				execArgs := []string{
					"regen-step",
					"--archive-path", archivePath,
					"--chain-id", chainID,
					"--working-dir", workingDir,
					"--database-url", databaseURL,
				}
				if remoteURL != "" {
					execArgs = append(execArgs, "--remote-url", remoteURL)
				}
				if allowExisting {
					execArgs = append(execArgs, "--allow-existing-data")
				}
				if runningStart != nil {
					execArgs = append(execArgs, "--start", strconv.FormatInt(*runningStart, 10))
				}
				if stepStop != nil {
					execArgs = append(execArgs, "--stop", strconv.FormatInt(*stepStop, 10))
				}

				logger.Info("regen: launching regen-step", "args", execArgs)
				step := exec.CommandContext(c.Context(), os.Args[0], execArgs...)
				step.Stdout = os.Stdout
				step.Stderr = os.Stderr
				if err := step.Run(); err != nil {
					return xerrors.VersionRuntime.Wrapf(err, "regen-step failed starting from height %v", runningStart)
				}

				runningStart = stepStop
				if stepStop == nil {
					break
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&archivePath, "archive-path", "", "path to the archive sqlite file")
	c.Flags().StringVar(&chainID, "chain-id", "", "chain id to regenerate")
	c.Flags().StringVar(&workingDir, "working-dir", "", "app-version working directory")
	c.Flags().StringVar(&databaseURL, "database-url", "", "event index postgres connection string")
	c.Flags().StringVar(&remoteURL, "remote-url", "", "optional remote node RPC base URL to tail beyond the archive")
	c.Flags().BoolVar(&allowExisting, "allow-existing-data", false, "skip already-indexed blocks/txs instead of failing")
	c.Flags().BoolVar(&clean, "clean", false, "remove the working directory before regenerating")
	c.Flags().Int64Var(&start, "start", 0, "truncation lower bound (defaults to the index's last height unless --allow-existing-data is set)")
	c.Flags().Int64Var(&stop, "stop", 0, "truncation upper bound")
	c.PreRunE = func(c *cobra.Command, args []string) error {
		hasStart = c.Flags().Changed("start")
		hasStop = c.Flags().Changed("stop")
		return nil
	}
	return c
}

// lastIndexedHeight opens the event index just long enough to read its
// high-water mark, so a bare `regen` invocation (no --start) resumes where
// a prior run left off instead of requiring the caller to track it.
func lastIndexedHeight(ctx context.Context, dbURL string) (*int64, error) {
	idx, err := index.Open(ctx, dbURL, true)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	height, ok, err := idx.LastHeight(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &height, nil
}

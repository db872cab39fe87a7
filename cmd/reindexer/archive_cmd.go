package main

import (
	"github.com/spf13/cobra"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/archiver"
	"github.com/cosmos-archival/reindexer/internal/xlog"
	"github.com/cosmos-archival/reindexer/source"
)

func archiveCmd() *cobra.Command {
	var (
		archivePath string
		chainID     string
		localDir    string
		localBackend string
		remoteURL   string
	)

	c := &cobra.Command{
		Use:   "archive",
		Short: "Build or extend the archive from a local node directory or a remote RPC",
		RunE: func(c *cobra.Command, args []string) error {
			logOpts, err := xlog.OptionsFromFlags(c.Flags())
			if err != nil {
				return err
			}
			logger := xlog.New(logOpts)

			var src source.Source
			switch {
			case remoteURL != "":
				src = source.NewRemoteSource(remoteURL)
			case localDir != "":
				local, err := source.OpenLocalSource(localDir, localBackend)
				if err != nil {
					return err
				}
				defer local.Close()
				src = local
			default:
				return errMissingSource
			}

			a, err := archive.Open(c.Context(), archivePath, chainID)
			if err != nil {
				return err
			}
			defer a.Close()

			return archiver.Run(c.Context(), logger, src, a)
		},
	}

	c.Flags().StringVar(&archivePath, "archive-path", "", "path to the archive sqlite file (empty for in-memory)")
	c.Flags().StringVar(&chainID, "chain-id", "", "chain id to bind a fresh archive to")
	c.Flags().StringVar(&localDir, "local-dir", "", "local consensus store directory to ingest from")
	c.Flags().StringVar(&localBackend, "local-backend", "goleveldb", "local consensus store backend")
	c.Flags().StringVar(&remoteURL, "remote-url", "", "remote node RPC base URL to ingest from")
	return c
}

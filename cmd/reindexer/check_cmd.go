package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/check"
	"github.com/cosmos-archival/reindexer/plan"
)

func checkCmd() *cobra.Command {
	var (
		archivePath string
		chainID     string
		databaseURL string
	)

	c := &cobra.Command{
		Use:   "check",
		Short: "Run the integrity checker over the archive (and, if configured, the event index)",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := archive.Open(c.Context(), archivePath, chainID)
			if err != nil {
				return err
			}
			defer a.Close()

			gaps, err := check.ArchiveGaps(c.Context(), a)
			if err != nil {
				return err
			}
			if len(gaps) == 0 {
				fmt.Println("archive: no gaps")
			}
			for _, g := range gaps {
				fmt.Printf("archive: gap [%d, %d]\n", g.Start, g.End)
			}

			if p, ok := plan.FromChainID(chainID); ok {
				expected := countGenesisBoundaries(p)
				got, err := a.GenesisCount(c.Context())
				if err != nil {
					return err
				}
				if err := check.ExpectedGenesisCount(got, expected); err != nil {
					fmt.Println(err)
				} else {
					fmt.Printf("archive: genesis count OK (%d)\n", got)
				}
			}

			if databaseURL == "" {
				return nil
			}
			idx, err := check.OpenIndexDB(databaseURL)
			if err != nil {
				return err
			}
			defer idx.Close()

			indexGaps, err := idx.Gaps(c.Context())
			if err != nil {
				return err
			}
			if len(indexGaps) == 0 {
				fmt.Println("index: no gaps")
			}
			for _, g := range indexGaps {
				fmt.Printf("index: gap [%d, %d]\n", g.Start, g.End)
			}

			if last, ok, err := a.LastHeight(c.Context()); err != nil {
				return err
			} else if ok {
				if err := idx.BlockCount(c.Context(), last); err != nil {
					fmt.Println(err)
				} else {
					fmt.Println("index: block count OK")
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&archivePath, "archive-path", "", "path to the archive sqlite file")
	c.Flags().StringVar(&chainID, "chain-id", "", "chain id this archive is bound to")
	c.Flags().StringVar(&databaseURL, "database-url", "", "optional event index postgres connection string to also check")
	return c
}

func countGenesisBoundaries(p plan.Plan) int64 {
	var n int64
	for _, e := range p.Entries {
		if _, ok := e.Step.(plan.InitThenRunTo); ok {
			n++
		}
	}
	return n
}

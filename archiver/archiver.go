// Package archiver implements the ingest pipeline: pull from a source,
// write to the archive, idempotent and resumable by construction because
// it always resumes at archive.last+1.
package archiver

import (
	"context"

	sdklog "cosmossdk.io/log"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/source"
)

// Run ingests every block the source currently holds into a, starting at
// max(source.first, archive.last+1) and ending at source.last:
//
//  1. put_genesis for the source's genesis.
//  2. compute start/end; if start > end or either bound is missing, log
//     and return without error.
//  3. stream blocks [start..=end], calling put_block for each.
//
// Rerunning Run on a partially-filled archive resumes at archive.last+1,
// so it is safe to call repeatedly (e.g. from a polling caller).
func Run(ctx context.Context, logger sdklog.Logger, src source.Source, a *archive.Archive) error {
	genesis, err := src.GetGenesis(ctx)
	if err != nil {
		return err
	}
	if err := a.PutGenesis(ctx, genesis); err != nil {
		return err
	}

	bounds, ok, err := src.GetHeightBounds(ctx)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("archiver: source has no blocks yet")
		return nil
	}

	start := bounds.Start
	if last, ok, err := a.LastHeight(ctx); err != nil {
		return err
	} else if ok {
		if next := uint64(last) + 1; next > start {
			start = next
		}
	}
	end := bounds.End

	if start > end {
		logger.Info("archiver: nothing to ingest", "start", start, "end", end)
		return nil
	}

	logger.Info("archiver: ingesting", "start", start, "end", end)
	for res := range src.StreamBlocks(ctx, start, &end) {
		if res.Err != nil {
			return res.Err
		}
		if err := a.PutBlock(ctx, res.Block); err != nil {
			return err
		}
	}
	return nil
}

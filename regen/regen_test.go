package regen

import (
	"context"
	"os"
	"testing"

	sdklog "cosmossdk.io/log"
	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/appversion"
	"github.com/cosmos-archival/reindexer/appversion/vseed"
	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/index"
	"github.com/cosmos-archival/reindexer/plan"
)

func openTestIndexer(t *testing.T) *index.Indexer {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping regen tests that need a postgres-backed index")
	}
	idx, err := index.Open(context.Background(), dbURL, true)
	assert.NilError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRunDrivesVseedPlanDeterministically(t *testing.T) {
	ctx := context.Background()

	a, err := archive.Open(ctx, "", "test-chain")
	assert.NilError(t, err)
	t.Cleanup(func() { a.Close() })

	g := block.TestGenesis(1)
	assert.NilError(t, a.PutGenesis(ctx, g))
	for h := int64(1); h <= 3; h++ {
		assert.NilError(t, a.PutBlock(ctx, block.TestBlock(h)))
	}

	idx := openTestIndexer(t)

	registry := appversion.NewRegistry()
	registry.Register(vseed.Version{})

	p := plan.Plan{
		ChainID: "test-chain",
		Entries: []plan.Entry{
			{StartHeight: 0, Step: plan.InitThenRunTo{GenesisHeight: 1, Version: vseed.Name, LastBlock: int64Ptr(3)}},
		},
	}

	// Two independent runs against fresh working directories over the same
	// archive and plan must both succeed deterministically, without
	// re-running Genesis against an already-initialized working directory
	// (which vseed correctly rejects).
	for i := 0; i < 2; i++ {
		r := &Regenerator{
			Registry:   registry,
			Archive:    a,
			Indexer:    idx,
			WorkingDir: t.TempDir(),
			Logger:     sdklog.NewNopLogger(),
		}
		assert.NilError(t, r.Run(ctx, p))
	}
}

func int64Ptr(v int64) *int64 { return &v }

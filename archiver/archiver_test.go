package archiver

import (
	"context"
	"testing"

	sdklog "cosmossdk.io/log"
	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/source"
)

func TestRunIngestsFullRange(t *testing.T) {
	ctx := context.Background()
	local, err := source.OpenLocalSource(t.TempDir(), "memdb")
	assert.NilError(t, err)
	t.Cleanup(func() { local.Close() })

	assert.NilError(t, local.PutGenesis(ctx, block.TestGenesis(1)))
	for _, h := range []int64{1, 2, 3} {
		assert.NilError(t, local.PutBlock(ctx, block.TestBlock(h)))
	}

	a, err := archive.Open(ctx, "", "test-chain")
	assert.NilError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NilError(t, Run(ctx, sdklog.NewNopLogger(), local, a))

	last, ok, err := a.LastHeight(ctx)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, last, int64(3))

	g, ok, err := a.GetGenesis(ctx, 1)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, g.ChainID, "test-chain")
}

func TestRunIsResumable(t *testing.T) {
	ctx := context.Background()
	local, err := source.OpenLocalSource(t.TempDir(), "memdb")
	assert.NilError(t, err)
	t.Cleanup(func() { local.Close() })

	assert.NilError(t, local.PutGenesis(ctx, block.TestGenesis(1)))
	for _, h := range []int64{1, 2} {
		assert.NilError(t, local.PutBlock(ctx, block.TestBlock(h)))
	}

	a, err := archive.Open(ctx, "", "test-chain")
	assert.NilError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NilError(t, Run(ctx, sdklog.NewNopLogger(), local, a))

	assert.NilError(t, local.PutBlock(ctx, block.TestBlock(3)))
	assert.NilError(t, Run(ctx, sdklog.NewNopLogger(), local, a))

	last, _, err := a.LastHeight(ctx)
	assert.NilError(t, err)
	assert.Equal(t, last, int64(3))
}

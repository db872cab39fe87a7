package check

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/block"
)

func TestArchiveGapsDetectsGap(t *testing.T) {
	ctx := context.Background()
	a, err := archive.Open(ctx, "", "test-chain")
	assert.NilError(t, err)
	t.Cleanup(func() { a.Close() })

	for _, h := range []int64{1, 2, 4, 5} {
		assert.NilError(t, a.PutBlock(ctx, block.TestBlock(h)))
	}

	gaps, err := ArchiveGaps(ctx, a)
	assert.NilError(t, err)
	assert.DeepEqual(t, gaps, []Gap{{Start: 3, End: 3}})
}

func TestArchiveGapsEmptyWhenContiguous(t *testing.T) {
	ctx := context.Background()
	a, err := archive.Open(ctx, "", "test-chain")
	assert.NilError(t, err)
	t.Cleanup(func() { a.Close() })

	for _, h := range []int64{1, 2, 3} {
		assert.NilError(t, a.PutBlock(ctx, block.TestBlock(h)))
	}

	gaps, err := ArchiveGaps(ctx, a)
	assert.NilError(t, err)
	assert.Equal(t, len(gaps), 0)
}

func TestExpectedGenesisCount(t *testing.T) {
	assert.NilError(t, ExpectedGenesisCount(3, 3))
	assert.ErrorContains(t, ExpectedGenesisCount(2, 3), "expected 3")
}

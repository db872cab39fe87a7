package source

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/block"
)

func openTestLocalSource(t *testing.T) *LocalSource {
	t.Helper()
	t.TempDir()
	s, err := OpenLocalSource(t.TempDir(), "memdb")
	assert.NilError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestLocalSource(t)

	assert.NilError(t, s.PutGenesis(ctx, block.TestGenesis(1)))
	assert.NilError(t, s.PutBlock(ctx, block.TestBlock(1)))
	assert.NilError(t, s.PutBlock(ctx, block.TestBlock(2)))
	assert.NilError(t, s.PutBlock(ctx, block.TestBlock(3)))

	g, err := s.GetGenesis(ctx)
	assert.NilError(t, err)
	assert.Equal(t, g.InitialHeight, int64(1))

	bounds, ok, err := s.GetHeightBounds(ctx)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, bounds.Start, uint64(1))
	assert.Equal(t, bounds.End, uint64(3))

	b, found, err := s.GetBlock(ctx, 2)
	assert.NilError(t, err)
	assert.Assert(t, found)
	assert.Equal(t, b.Height(), int64(2))

	_, found, err = s.GetBlock(ctx, 99)
	assert.NilError(t, err)
	assert.Assert(t, !found)
}

func TestLocalSourceStreamBlocks(t *testing.T) {
	ctx := context.Background()
	s := openTestLocalSource(t)

	for _, h := range []int64{1, 2, 3} {
		assert.NilError(t, s.PutBlock(ctx, block.TestBlock(h)))
	}

	var got []uint64
	for res := range s.StreamBlocks(ctx, 1, nil) {
		assert.NilError(t, res.Err)
		got = append(got, res.Height)
	}
	assert.DeepEqual(t, got, []uint64{1, 2, 3})
}

func TestLocalSourceHeightBoundsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestLocalSource(t)

	_, ok, err := s.GetHeightBounds(ctx)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}

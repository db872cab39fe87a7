package vledger

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/appversion/vseed"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
)

func TestMigrateCarriesOverBalancesAndResetsHeight(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	seedGenesis, err := block.DecodeGenesis([]byte(`{
		"chain_id": "test-chain",
		"initial_height": "1",
		"app_state": {"balances": {"alice": 100, "bob": 0}}
	}`))
	assert.NilError(t, err)

	seed := vseed.Version{}
	seedInst, err := seed.Load(ctx, dir)
	assert.NilError(t, err)
	assert.NilError(t, seedInst.Genesis(ctx, seedGenesis))
	_, err = seedInst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("alice:bob:25")})
	assert.NilError(t, err)
	_, err = seedInst.EndBlock(ctx, compat.EndBlock{Height: 1})
	assert.NilError(t, err)
	_, err = seedInst.Commit(ctx)
	assert.NilError(t, err)
	assert.NilError(t, seedInst.Release(ctx))

	assert.NilError(t, Migrate(ctx, dir))

	v := Version{}
	inst, err := v.Load(ctx, dir)
	assert.NilError(t, err)
	defer inst.Release(ctx)

	height, chainID, err := inst.Metadata(ctx)
	assert.NilError(t, err)
	assert.Equal(t, height, int64(0))
	assert.Equal(t, chainID, "test-chain")

	events, err := inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("bob:alice:10:thanks")})
	assert.NilError(t, err)
	assert.Equal(t, events[0].Kind, "transfer")
}

func TestMigrateRejectsUnreadySource(t *testing.T) {
	ctx := context.Background()
	err := Migrate(ctx, t.TempDir())
	assert.ErrorContains(t, err, "not a ready vseed instance")
}

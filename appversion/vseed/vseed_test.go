package vseed

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
)

func testGenesis(t *testing.T) block.Genesis {
	t.Helper()
	g, err := block.DecodeGenesis([]byte(`{
		"chain_id": "test-chain",
		"initial_height": "1",
		"app_state": {"balances": {"alice": 100, "bob": 0}}
	}`))
	assert.NilError(t, err)
	return g
}

func TestGenesisSeedsBalancesAndMetadata(t *testing.T) {
	ctx := context.Background()
	v := Version{}
	inst, err := v.Load(ctx, t.TempDir())
	assert.NilError(t, err)
	defer inst.Release(ctx)

	assert.NilError(t, inst.Genesis(ctx, testGenesis(t)))

	height, chainID, err := inst.Metadata(ctx)
	assert.NilError(t, err)
	assert.Equal(t, height, int64(0))
	assert.Equal(t, chainID, "test-chain")
}

func TestGenesisRejectsDoubleInit(t *testing.T) {
	ctx := context.Background()
	v := Version{}
	inst, err := v.Load(ctx, t.TempDir())
	assert.NilError(t, err)
	defer inst.Release(ctx)

	assert.NilError(t, inst.Genesis(ctx, testGenesis(t)))
	assert.ErrorContains(t, inst.Genesis(ctx, testGenesis(t)), "already initialized")
}

func TestDeliverTxTransfersBalance(t *testing.T) {
	ctx := context.Background()
	v := Version{}
	inst, err := v.Load(ctx, t.TempDir())
	assert.NilError(t, err)
	defer inst.Release(ctx)

	assert.NilError(t, inst.Genesis(ctx, testGenesis(t)))

	_, err = inst.BeginBlock(ctx, compat.BeginBlock{Height: 1})
	assert.NilError(t, err)

	events, err := inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("alice:bob:40")})
	assert.NilError(t, err)
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].Kind, "transfer")

	_, err = inst.EndBlock(ctx, compat.EndBlock{Height: 1})
	assert.NilError(t, err)

	hash1, err := inst.Commit(ctx)
	assert.NilError(t, err)
	assert.Assert(t, len(hash1) > 0)

	height, _, err := inst.Metadata(ctx)
	assert.NilError(t, err)
	assert.Equal(t, height, int64(1))
}

func TestDeliverTxRejectsInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	v := Version{}
	inst, err := v.Load(ctx, t.TempDir())
	assert.NilError(t, err)
	defer inst.Release(ctx)

	assert.NilError(t, inst.Genesis(ctx, testGenesis(t)))
	_, err = inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("bob:alice:1")})
	assert.ErrorContains(t, err, "insufficient balance")
}

func TestAppHashIsDeterministicAcrossInstances(t *testing.T) {
	ctx := context.Background()

	drive := func(dir string) []byte {
		v := Version{}
		inst, err := v.Load(ctx, dir)
		assert.NilError(t, err)
		defer inst.Release(ctx)

		assert.NilError(t, inst.Genesis(ctx, testGenesis(t)))
		_, err = inst.BeginBlock(ctx, compat.BeginBlock{Height: 1})
		assert.NilError(t, err)
		_, err = inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("alice:bob:10")})
		assert.NilError(t, err)
		_, err = inst.EndBlock(ctx, compat.EndBlock{Height: 1})
		assert.NilError(t, err)
		hash, err := inst.Commit(ctx)
		assert.NilError(t, err)
		return hash
	}

	h1 := drive(t.TempDir())
	h2 := drive(t.TempDir())
	assert.DeepEqual(t, h1, h2)
}

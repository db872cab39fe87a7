package vcurrent

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/appversion/vledger"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
)

func testLedgerGenesis(t *testing.T) block.Genesis {
	t.Helper()
	g, err := block.DecodeGenesis([]byte(`{
		"chain_id": "test-chain",
		"initial_height": "1",
		"app_state": {"balances": {"alice": 100}}
	}`))
	assert.NilError(t, err)
	return g
}

func testCurrentGenesis(t *testing.T) block.Genesis {
	t.Helper()
	g, err := block.DecodeGenesis([]byte(`{
		"chain_id": "test-chain",
		"initial_height": "1",
		"app_state": {}
	}`))
	assert.NilError(t, err)
	return g
}

func TestMigrateCarriesOverLedgerState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger := vledger.Version{}
	ledgerInst, err := ledger.Load(ctx, dir)
	assert.NilError(t, err)
	assert.NilError(t, ledgerInst.Genesis(ctx, testLedgerGenesis(t)))
	_, err = ledgerInst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("alice:bob:15:hi")})
	assert.NilError(t, err)
	_, err = ledgerInst.EndBlock(ctx, compat.EndBlock{Height: 1})
	assert.NilError(t, err)
	_, err = ledgerInst.Commit(ctx)
	assert.NilError(t, err)
	assert.NilError(t, ledgerInst.Release(ctx))

	assert.NilError(t, Migrate(ctx, dir))

	v := Version{}
	inst, err := v.Load(ctx, dir)
	assert.NilError(t, err)
	defer inst.Release(ctx)

	height, _, err := inst.Metadata(ctx)
	assert.NilError(t, err)
	assert.Equal(t, height, int64(0))
}

func TestLockPreventsOutgoingTransfer(t *testing.T) {
	ctx := context.Background()
	v := Version{}
	inst, err := v.Load(ctx, t.TempDir())
	assert.NilError(t, err)
	defer inst.Release(ctx)

	assert.NilError(t, inst.Genesis(ctx, testCurrentGenesis(t)))

	_, err = inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("lock:alice:true")})
	assert.NilError(t, err)

	_, err = inst.DeliverTx(ctx, compat.DeliverTx{Tx: []byte("alice:bob:10")})
	assert.ErrorContains(t, err, "is locked")
}

package index

import (
	"context"
	"os"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/compat"
)

// openTest opens the event index against TEST_DATABASE_URL, skipping the
// test when it isn't set. Exercising the real postgres-backed transaction
// and idempotence logic needs a live database; there is no sqlite
// in-memory fallback for this package, unlike archive.
func openTest(t *testing.T) *Indexer {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres-backed index tests")
	}
	idx, err := Open(context.Background(), dbURL, false)
	assert.NilError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestEnterBlockAndEvents(t *testing.T) {
	ctx := context.Background()
	idx := openTest(t)

	assert.NilError(t, idx.EnterBlock(ctx, 1, "test-chain"))
	assert.NilError(t, idx.Events(ctx, []compat.Event{compat.NewEvent("mint", compat.NewAttribute("amount", "10"))}, nil))
	assert.NilError(t, idx.Events(ctx, nil, &TxContext{
		Index:  0,
		Tx:     []byte("alice:bob:5"),
		Result: compat.TxResult{Code: 0},
	}))
	assert.NilError(t, idx.EndBlock(ctx, []byte{0xde, 0xad}))
}

// A run that starts well past height 1 (as a truncated regen-step does)
// must still stamp each tx's "tx.height" attribute with the real chain
// height, not the blocks table's sequential rowid.
func TestEnterBlockTxHeightAttributeMatchesChainHeightNotRowID(t *testing.T) {
	ctx := context.Background()
	idx := openTest(t)

	const height = 500000
	assert.NilError(t, idx.EnterBlock(ctx, height, "test-chain"))
	assert.NilError(t, idx.Events(ctx, nil, &TxContext{
		Index:  0,
		Tx:     []byte("alice:bob:5"),
		Result: compat.TxResult{Code: 0},
	}))
	assert.NilError(t, idx.EndBlock(ctx, []byte{0xbe, 0xef}))

	var value []byte
	err := idx.db.QueryRowContext(ctx, `
		SELECT a.value FROM attributes a
		JOIN events e ON e.rowid = a.event_id
		JOIN blocks b ON b.rowid = e.block_id
		WHERE e.kind = 'tx' AND a.composite_key = 'tx.height' AND b.height = $1
	`, height).Scan(&value)
	assert.NilError(t, err)
	assert.Equal(t, string(value), strconv.Itoa(height))
}

func TestEnterBlockRejectsDuplicateByDefault(t *testing.T) {
	ctx := context.Background()
	idx := openTest(t)

	assert.NilError(t, idx.EnterBlock(ctx, 2, "test-chain"))
	assert.NilError(t, idx.EndBlock(ctx, []byte{0x01}))

	err := idx.EnterBlock(ctx, 2, "test-chain")
	assert.ErrorContains(t, err, "already indexed")
}

func TestAllowExistingDataSkipsReindex(t *testing.T) {
	ctx := context.Background()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres-backed index tests")
	}
	idx, err := Open(ctx, dbURL, true)
	assert.NilError(t, err)
	t.Cleanup(func() { idx.Close() })

	for i := 0; i < 2; i++ {
		assert.NilError(t, idx.EnterBlock(ctx, 3, "test-chain"))
		assert.NilError(t, idx.Events(ctx, []compat.Event{compat.NewEvent("mint", compat.NewAttribute("amount", "10"))}, nil))
		assert.NilError(t, idx.EndBlock(ctx, []byte{0x02}))
	}

	var count int
	assert.NilError(t, idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks WHERE height = 3`).Scan(&count))
	assert.Equal(t, count, 1)
}

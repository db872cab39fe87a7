package plan

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTruncateNoOpIsIdentity(t *testing.T) {
	p := MainNet()
	assert.DeepEqual(t, p.Truncate(nil, nil), p)
}

func TestTruncateScenario(t *testing.T) {
	// A mid-step truncation spanning a genesis-rewrite and a stop clamp; the
	// Migrate at 100 lies above start and is kept.
	p := Plan{
		ChainID: "c",
		Entries: []Entry{
			{StartHeight: 0, Step: InitThenRunTo{GenesisHeight: 1, Version: "V1", LastBlock: ptr(100)}},
			{StartHeight: 100, Step: Migrate{From: "V1", To: "V2"}},
			{StartHeight: 100, Step: InitThenRunTo{GenesisHeight: 101, Version: "V2"}},
		},
	}

	got := p.Truncate(ptr(50), ptr(150))

	want := Plan{
		ChainID: "c",
		Entries: []Entry{
			{StartHeight: 50, Step: RunTo{Version: "V1", LastBlock: ptr(100)}},
			{StartHeight: 100, Step: Migrate{From: "V1", To: "V2"}},
			{StartHeight: 100, Step: InitThenRunTo{GenesisHeight: 101, Version: "V2", LastBlock: ptr(150)}},
		},
	}
	assert.DeepEqual(t, got, want)
}

func TestTruncateDropsMigrateBelowStart(t *testing.T) {
	p := Plan{
		ChainID: "c",
		Entries: []Entry{
			{StartHeight: 0, Step: InitThenRunTo{GenesisHeight: 1, Version: "V1", LastBlock: ptr(100)}},
			{StartHeight: 100, Step: Migrate{From: "V1", To: "V2"}},
			{StartHeight: 100, Step: InitThenRunTo{GenesisHeight: 101, Version: "V2"}},
		},
	}
	got := p.Truncate(ptr(200), nil)
	assert.Equal(t, len(got.Entries), 1)
	_, ok := got.Entries[0].Step.(RunTo)
	assert.Assert(t, ok)
}

type fakeProbe struct {
	blocks, geneses map[int64]bool
}

func (f fakeProbe) BlockExists(ctx context.Context, h int64) (bool, error) {
	return f.blocks[h], nil
}

func (f fakeProbe) GenesisExists(ctx context.Context, h int64) (bool, error) {
	return f.geneses[h], nil
}

func TestFeasibleRequiresGenesisAndBounds(t *testing.T) {
	ctx := context.Background()
	p := Plan{Entries: []Entry{
		{StartHeight: 0, Step: InitThenRunTo{GenesisHeight: 1, Version: "V1", LastBlock: ptr(10)}},
	}}

	probe := fakeProbe{blocks: map[int64]bool{10: true}, geneses: map[int64]bool{1: true}}
	assert.NilError(t, Feasible(ctx, p, probe))

	missingGenesis := fakeProbe{blocks: map[int64]bool{10: true}}
	assert.ErrorContains(t, Feasible(ctx, p, missingGenesis), "no genesis")
}

func TestFeasibleMigrateAlwaysOK(t *testing.T) {
	ctx := context.Background()
	p := Plan{Entries: []Entry{{StartHeight: 5, Step: Migrate{From: "V1", To: "V2"}}}}
	assert.NilError(t, Feasible(ctx, p, fakeProbe{}))
}

func TestFromChainIDKnownAndUnknown(t *testing.T) {
	_, ok := FromChainID(ChainIDMainNet)
	assert.Assert(t, ok)
	_, ok = FromChainID("not-a-chain")
	assert.Assert(t, !ok)
}

func TestTestnetQuirkReproducesMismatchedMigrateBoundaryExactly(t *testing.T) {
	p := TestnetQuirk()
	assert.Equal(t, p.Entries[1].StartHeight, int64(23583289))
	migrate, ok := p.Entries[1].Step.(Migrate)
	assert.Assert(t, ok)
	assert.Equal(t, migrate.From, "vseed")
	assert.Equal(t, migrate.To, "vledger")
	assert.Equal(t, p.Entries[2].StartHeight, int64(2358329))
}

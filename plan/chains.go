package plan

// The chain ids and concrete plans below stand in for a deployment's
// registered chains: three versions and two migrations each.
// vseed/vledger/vcurrent are this engine's toy protocol versions (package
// appversion); a real deployment would register the chain's actual
// historical binaries here instead.

const (
	ChainIDMainNet = "reindexer-1"
	// ChainIDTestnetQuirk intentionally carries the reproduced
	// literal-constant planner mistake (see TestnetQuirk below).
	ChainIDTestnetQuirk = "reindexer-testnet-quirk"
)

// MainNet is the plan for ChainIDMainNet: vseed from genesis to 1000,
// migrate to vledger, run to 5000, migrate to vcurrent, run indefinitely.
func MainNet() Plan {
	return Plan{
		ChainID: ChainIDMainNet,
		Entries: []Entry{
			{StartHeight: 0, Step: InitThenRunTo{GenesisHeight: 1, Version: "vseed", LastBlock: ptr(1000)}},
			{StartHeight: 1000, Step: Migrate{From: "vseed", To: "vledger"}},
			{StartHeight: 1000, Step: InitThenRunTo{GenesisHeight: 1001, Version: "vledger", LastBlock: ptr(5000)}},
			{StartHeight: 5000, Step: Migrate{From: "vledger", To: "vcurrent"}},
			{StartHeight: 5000, Step: InitThenRunTo{GenesisHeight: 5001, Version: "vcurrent"}},
		},
	}
}

// TestnetQuirk is the plan for ChainIDTestnetQuirk. It reproduces, exactly,
// an apparent literal-constant mistake in the upstream plan: the Migrate
// step is keyed at boundary height 23583289, an order of magnitude off
// (one extra digit, an 8 before the final 9) from the adjacent InitThenRunTo's StartHeight
// of 2358329, which uses the correct value. The exact mismatched boundary
// height is preserved verbatim and must never be "corrected".
func TestnetQuirk() Plan {
	return Plan{
		ChainID: ChainIDTestnetQuirk,
		Entries: []Entry{
			{StartHeight: 0, Step: InitThenRunTo{GenesisHeight: 1, Version: "vseed", LastBlock: ptr(2358329)}},
			{StartHeight: 23583289, Step: Migrate{From: "vseed", To: "vledger"}},
			{StartHeight: 2358329, Step: InitThenRunTo{GenesisHeight: 2358330, Version: "vledger", LastBlock: ptr(5000000)}},
			{StartHeight: 5000000, Step: Migrate{From: "vledger", To: "vcurrent"}},
			{StartHeight: 5000000, Step: InitThenRunTo{GenesisHeight: 5000001, Version: "vcurrent"}},
		},
	}
}

// FromChainID looks up the built-in plan registered for id.
func FromChainID(id string) (Plan, bool) {
	switch id {
	case ChainIDMainNet:
		return MainNet(), true
	case ChainIDTestnetQuirk:
		return TestnetQuirk(), true
	default:
		return Plan{}, false
	}
}

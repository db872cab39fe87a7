// Package source defines the engine's two block sources: a local consensus
// store opened directly off disk, and a remote node's RPC, following the
// original program's cometbft module (cometbft.rs, cometbft/remote.rs).
package source

import (
	"context"

	"github.com/cosmos-archival/reindexer/block"
)

// HeightBounds is the inclusive range of heights a source currently holds,
// as reported by its earliest/latest block height.
type HeightBounds struct {
	Start uint64
	End   uint64
}

// StreamResult is one item produced by Source.StreamBlocks: either the
// block found at Height, or an error that terminates the stream.
type StreamResult struct {
	Height uint64
	Block  block.Block
	Err    error
}

// Source is a read-only view onto a sequence of historical blocks, either a
// local consensus store or a remote node's RPC.
type Source interface {
	// GetGenesis returns the source's genesis document.
	GetGenesis(ctx context.Context) (block.Genesis, error)

	// GetHeightBounds returns the inclusive range of heights currently
	// available, or (zero value, false) if the source holds no blocks yet.
	GetHeightBounds(ctx context.Context) (HeightBounds, bool, error)

	// GetBlock returns the block at height, or (zero, false) if absent.
	GetBlock(ctx context.Context, height uint64) (block.Block, bool, error)

	// StreamBlocks emits StreamResult values for heights in [start, end]
	// in order, starting no earlier than start and continuing, if end is
	// nil, indefinitely by polling for newly produced blocks. The
	// returned channel is closed when the context is canceled or a fatal
	// error is sent (the last value on the channel).
	StreamBlocks(ctx context.Context, start uint64, end *uint64) <-chan StreamResult
}

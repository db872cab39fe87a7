// Package appversion declares the closed, build-time-registered capability
// set every protocol version implements: genesis, begin_block, deliver_tx,
// end_block, commit, metadata, release, plus a per-pair migrate. Each
// concrete version (vseed, vledger, vcurrent) is a distinct, self-contained
// implementation behind this interface, never a shared base class.
package appversion

import (
	"context"

	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
)

// Instance is a loaded, stateful handle on one version's application state,
// scoped to a single working directory. It is created per regeneration
// step and destroyed by Release, which must relinquish exclusive ownership
// of the working directory's state store before another Load of any
// version against the same directory.
type Instance interface {
	// Genesis initializes chain state from the genesis document's
	// application-state subtree.
	Genesis(ctx context.Context, g block.Genesis) error

	// Metadata reports the instance's current height and chain id. It
	// fails if the instance has not been initialized by Genesis (or left
	// ready by a prior Migrate).
	Metadata(ctx context.Context) (height int64, chainID string, err error)

	BeginBlock(ctx context.Context, req compat.BeginBlock) ([]compat.Event, error)

	// DeliverTx failures are reported as an error; the caller (the
	// regenerator) maps that into a coded tx result rather than aborting
	// the block.
	DeliverTx(ctx context.Context, req compat.DeliverTx) ([]compat.Event, error)

	EndBlock(ctx context.Context, req compat.EndBlock) ([]compat.Event, error)

	// Commit finalizes the block's state transition and returns the
	// resulting 32-byte application hash.
	Commit(ctx context.Context) ([]byte, error)

	// Release relinquishes exclusive ownership of the instance's working
	// directory. It must be called exactly once, even when a prior step
	// failed.
	Release(ctx context.Context) error
}

// Version names one registered protocol version and knows how to load an
// Instance against a working directory.
type Version interface {
	// Name is the version's registry key, e.g. "vseed".
	Name() string

	// Load takes exclusive ownership of the state store under workingDir
	// and returns a handle for driving blocks through it.
	Load(ctx context.Context, workingDir string) (Instance, error)
}

// MigrateFunc transforms a working directory's on-disk state from one
// version's data representation to another's, resets the application
// height to 0, and marks the directory ready so the next BeginBlock at the
// post-upgrade genesis height proceeds. It opens, transforms, commits, and
// releases its own exclusive state handle; it must fail if the working
// directory is not actually in the expected "from" shape.
type MigrateFunc func(ctx context.Context, workingDir string) error

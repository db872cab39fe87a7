// Package regen implements the regenerator: executes a truncated plan step
// by step, opening and releasing app instances, driving blocks through
// them, and forwarding events to the indexer.
package regen

import (
	"context"

	sdklog "cosmossdk.io/log"
	"golang.org/x/sync/errgroup"

	"github.com/cosmos-archival/reindexer/appversion"
	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
	"github.com/cosmos-archival/reindexer/index"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
	"github.com/cosmos-archival/reindexer/plan"
	"github.com/cosmos-archival/reindexer/source"
)

// tailChannelCapacity bounds the producer/consumer channel in Tail to a
// fixed-size FIFO, giving the producer backpressure against a slow
// consumer without unbounded buffering.
const tailChannelCapacity = 400

// Regenerator drives a plan against an archive, an app-version registry,
// a working directory, and an event indexer, optionally tailing a remote
// source beyond the archive's last height.
type Regenerator struct {
	Registry   *appversion.Registry
	Archive    *archive.Archive
	Indexer    *index.Indexer
	Remote     source.Source // nil if no remote source is configured
	WorkingDir string
	Logger     sdklog.Logger
}

// probe tries each registered version, in registration order, against
// WorkingDir until one reports initialized metadata, recovering
// (current_height, current_chain_id) from the working directory.
func (r *Regenerator) probe(ctx context.Context) (version string, height int64, chainID string, found bool, err error) {
	for _, name := range r.Registry.Names() {
		v, _ := r.Registry.Get(name)
		inst, loadErr := v.Load(ctx, r.WorkingDir)
		if loadErr != nil {
			continue
		}
		h, cid, metaErr := inst.Metadata(ctx)
		_ = inst.Release(ctx)
		if metaErr != nil {
			continue
		}
		return name, h, cid, true, nil
	}
	return "", 0, "", false, nil
}

// Run executes every entry of a truncated plan in order.
func (r *Regenerator) Run(ctx context.Context, p plan.Plan) error {
	if _, _, chainID, found, err := r.probe(ctx); err != nil {
		return err
	} else if found && p.ChainID != "" && chainID != p.ChainID {
		return xerrors.VersionRuntime.Newf(
			"working directory is bound to chain id %q, cannot run plan for %q", chainID, p.ChainID)
	}

	for _, entry := range p.Entries {
		switch step := entry.Step.(type) {
		case plan.Migrate:
			r.Logger.Info("regen: migrating", "from", step.From, "to", step.To)
			if err := r.Registry.Migrate(ctx, step.From, step.To, r.WorkingDir); err != nil {
				return err
			}
		case plan.InitThenRunTo:
			if err := r.runInitThenRunTo(ctx, entry.StartHeight, step); err != nil {
				return err
			}
		case plan.RunTo:
			if err := r.runRunTo(ctx, entry.StartHeight, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Regenerator) loadVersion(ctx context.Context, name string) (appversion.Version, appversion.Instance, error) {
	v, ok := r.Registry.Get(name)
	if !ok {
		return nil, nil, xerrors.VersionRuntime.Newf("no registered app version %q", name)
	}
	inst, err := v.Load(ctx, r.WorkingDir)
	if err != nil {
		return nil, nil, err
	}
	return v, inst, nil
}

func (r *Regenerator) fetchGenesis(ctx context.Context, height int64) (block.Genesis, error) {
	if g, ok, err := r.Archive.GetGenesis(ctx, height); err != nil {
		return block.Genesis{}, err
	} else if ok {
		return g, nil
	}
	if r.Remote == nil {
		return block.Genesis{}, xerrors.PlanInfeasible.Newf(
			"no genesis at height %d in archive and no remote source configured", height)
	}
	g, err := r.Remote.GetGenesis(ctx)
	if err != nil {
		return block.Genesis{}, err
	}
	if err := r.Archive.PutGenesis(ctx, g); err != nil {
		return block.Genesis{}, err
	}
	return g, nil
}

func (r *Regenerator) runInitThenRunTo(ctx context.Context, startHeight int64, step plan.InitThenRunTo) error {
	genesis, err := r.fetchGenesis(ctx, step.GenesisHeight)
	if err != nil {
		return err
	}

	_, inst, err := r.loadVersion(ctx, step.Version)
	if err != nil {
		return err
	}
	defer inst.Release(ctx)

	if err := inst.Genesis(ctx, genesis); err != nil {
		return err
	}

	return r.runFrom(ctx, inst, genesis.ChainID, startHeight, step.LastBlock)
}

func (r *Regenerator) runRunTo(ctx context.Context, startHeight int64, step plan.RunTo) error {
	_, inst, err := r.loadVersion(ctx, step.Version)
	if err != nil {
		return err
	}
	defer inst.Release(ctx)

	_, chainID, err := inst.Metadata(ctx)
	if err != nil {
		return err
	}

	return r.runFrom(ctx, inst, chainID, startHeight, step.LastBlock)
}

// runFrom drives blocks (from, min(lastBlock, archive.last)] and, if a
// remote source is configured and more work remains beyond the archive,
// tails it.
func (r *Regenerator) runFrom(ctx context.Context, inst appversion.Instance, chainID string, from int64, lastBlock *int64) error {
	archiveLast, ok, err := r.Archive.LastHeight(ctx)
	if err != nil {
		return err
	}
	if ok {
		stop := archiveLast
		if lastBlock != nil && *lastBlock < stop {
			stop = *lastBlock
		}
		if err := r.Drive(ctx, inst, chainID, from+1, stop); err != nil {
			return err
		}
		from = stop
	}

	needsTail := r.Remote != nil && (lastBlock == nil || (ok && *lastBlock > archiveLast) || !ok)
	if !needsTail {
		return nil
	}
	return r.Tail(ctx, inst, chainID, from, lastBlock)
}

// Drive pushes blocks [from, to] through inst, one at a time, in
// ascending height order.
func (r *Regenerator) Drive(ctx context.Context, inst appversion.Instance, chainID string, from, to int64) error {
	for h := from; h <= to; h++ {
		if err := r.driveOne(ctx, inst, chainID, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *Regenerator) driveOne(ctx context.Context, inst appversion.Instance, chainID string, height int64) error {
	b, ok, err := r.Archive.GetBlock(ctx, height)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.ArchiveIntegrity.Newf("missing archived block at height %d", height)
	}

	if err := r.Indexer.EnterBlock(ctx, height, chainID); err != nil {
		return err
	}

	beginEvents, err := inst.BeginBlock(ctx, compat.FromBlock(b))
	if err != nil {
		r.Indexer.Abort()
		return err
	}
	if err := r.Indexer.Events(ctx, beginEvents, nil); err != nil {
		r.Indexer.Abort()
		return err
	}

	for i, txBytes := range b.Txs() {
		events, txErr := inst.DeliverTx(ctx, compat.DeliverTx{Tx: txBytes})
		result := compat.WithDefaults(events, txErr)
		if err := r.Indexer.Events(ctx, result.Events, &index.TxContext{Index: i, Tx: txBytes, Result: result}); err != nil {
			r.Indexer.Abort()
			return err
		}
	}

	endEvents, err := inst.EndBlock(ctx, compat.EndBlock{Height: height})
	if err != nil {
		r.Indexer.Abort()
		return err
	}
	if err := r.Indexer.Events(ctx, endEvents, nil); err != nil {
		r.Indexer.Abort()
		return err
	}

	root, err := inst.Commit(ctx)
	if err != nil {
		r.Indexer.Abort()
		return err
	}
	return r.Indexer.EndBlock(ctx, root)
}

// Tail follows the remote source past the archive's last block, archiving
// and driving each new block as it arrives.
func (r *Regenerator) Tail(ctx context.Context, inst appversion.Instance, chainID string, from int64, lastBlock *int64) error {
	ch := make(chan block.Block, tailChannelCapacity)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ch)
		var end *uint64
		if lastBlock != nil {
			e := uint64(*lastBlock)
			end = &e
		}
		for res := range r.Remote.StreamBlocks(ctx, uint64(from+1), end) {
			if res.Err != nil {
				return res.Err
			}
			if err := r.Archive.PutBlock(ctx, res.Block); err != nil {
				return err
			}
			select {
			case ch <- res.Block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case b, open := <-ch:
				if !open {
					return nil
				}
				if err := r.driveOne(ctx, inst, chainID, b.Height()); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return g.Wait()
}

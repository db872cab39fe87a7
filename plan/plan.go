// Package plan implements the regeneration planner: a pure function from
// chain id (and optional start/stop) to an ordered list of steps. It
// performs no I/O beyond the archive existence checks Feasible requires.
package plan

import (
	"context"

	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Step is one instruction in a regeneration plan.
type Step interface {
	isStep()
}

// InitThenRunTo initializes a fresh app instance from the genesis at
// GenesisHeight, then drives blocks up to LastBlock (or indefinitely, if
// nil).
type InitThenRunTo struct {
	GenesisHeight int64
	Version       string
	LastBlock     *int64
}

func (InitThenRunTo) isStep() {}

// Migrate transforms a working directory from one version's data shape to
// another's. Migrations operate on state, not the archive, and are never
// rescheduled by truncation.
type Migrate struct {
	From, To string
}

func (Migrate) isStep() {}

// RunTo resumes an already-initialized instance of Version and drives
// blocks up to LastBlock (or indefinitely, if nil).
type RunTo struct {
	Version   string
	LastBlock *int64
}

func (RunTo) isStep() {}

// Entry pairs a step with the height replay resumes from when executing
// it.
type Entry struct {
	StartHeight int64
	Step        Step
}

// Plan is an ordered list of entries associated with a chain id at build
// time.
type Plan struct {
	ChainID string
	Entries []Entry
}

func ptr(v int64) *int64 { return &v }

func clampMax(v *int64, max int64) *int64 {
	if v == nil {
		return ptr(max)
	}
	if *v > max {
		return ptr(max)
	}
	return v
}

// Truncate drops and rewrites entries so replay starts no earlier than
// start (the last already-indexed height) and never drives past stop:
//
//   - entries ending strictly before start are dropped;
//   - an InitThenRunTo whose GenesisHeight <= start is rewritten into a
//     RunTo (the instance is assumed already initialized past genesis);
//   - a Migrate whose exact boundary height lies below start is dropped
//     (migrations are never rescheduled);
//   - entries whose StartHeight >= stop are dropped;
//   - every remaining LastBlock is clamped to min(LastBlock, stop).
//
// Truncate(nil, nil) is a no-op.
func (p Plan) Truncate(start, stop *int64) Plan {
	out := Plan{ChainID: p.ChainID}
	for _, e := range p.Entries {
		if start != nil && e.StartHeight < *start {
			switch step := e.Step.(type) {
			case InitThenRunTo:
				if step.LastBlock != nil && *step.LastBlock < *start {
					continue
				}
				if step.GenesisHeight <= *start {
					e = Entry{StartHeight: *start, Step: RunTo{Version: step.Version, LastBlock: step.LastBlock}}
				} else {
					continue
				}
			case Migrate:
				continue
			case RunTo:
				if step.LastBlock != nil && *step.LastBlock < *start {
					continue
				}
				e = Entry{StartHeight: *start, Step: step}
			}
		}
		if stop != nil && e.StartHeight >= *stop {
			continue
		}
		if stop != nil {
			switch step := e.Step.(type) {
			case InitThenRunTo:
				step.LastBlock = clampMax(step.LastBlock, *stop)
				e.Step = step
			case RunTo:
				step.LastBlock = clampMax(step.LastBlock, *stop)
				e.Step = step
			}
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// ArchiveProbe is the minimal archive-query surface Feasible needs. It is
// satisfied by *archive.Archive.
type ArchiveProbe interface {
	BlockExists(ctx context.Context, height int64) (bool, error)
	GenesisExists(ctx context.Context, initialHeight int64) (bool, error)
}

// Feasible checks every entry's height-existence requirements against an
// archive. It performs no I/O beyond the probe's own queries.
func Feasible(ctx context.Context, p Plan, a ArchiveProbe) error {
	for _, e := range p.Entries {
		switch step := e.Step.(type) {
		case InitThenRunTo:
			ok, err := a.GenesisExists(ctx, step.GenesisHeight)
			if err != nil {
				return err
			}
			if !ok {
				return xerrors.PlanInfeasible.Newf("no genesis at height %d", step.GenesisHeight)
			}
			if e.StartHeight > 0 {
				if err := requireBlock(ctx, a, e.StartHeight); err != nil {
					return err
				}
			}
			if step.LastBlock != nil {
				if err := requireBlock(ctx, a, *step.LastBlock); err != nil {
					return err
				}
			}
		case RunTo:
			if e.StartHeight > 0 {
				if err := requireBlock(ctx, a, e.StartHeight); err != nil {
					return err
				}
			}
			if step.LastBlock != nil {
				if err := requireBlock(ctx, a, *step.LastBlock); err != nil {
					return err
				}
			}
		case Migrate:
			// Always feasible: operates on state, not the archive.
		}
	}
	return nil
}

func requireBlock(ctx context.Context, a ArchiveProbe, height int64) error {
	ok, err := a.BlockExists(ctx, height)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.PlanInfeasible.Newf("no block at height %d", height)
	}
	return nil
}

// Package check implements the integrity checker: read-only gap and
// genesis-count scans against the archive, and the analogous gap and
// block-count scans against the event index.
package check

import (
	"context"
	"database/sql"

	"github.com/bobg/sqlutil"

	"github.com/cosmos-archival/reindexer/archive"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Gap is a contiguous range of missing heights.
type Gap struct {
	Start, End int64
}

// ArchiveGaps runs the gap scan over the archive's blocks table. An empty
// result means the archived heights are contiguous.
func ArchiveGaps(ctx context.Context, a *archive.Archive) ([]Gap, error) {
	gaps, err := a.Gaps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Gap, len(gaps))
	for i, g := range gaps {
		out[i] = Gap{Start: g.Start, End: g.End}
	}
	return out, nil
}

// ExpectedGenesisCount reports whether an archive's genesis count matches
// the number of upgrade boundaries the registered plan for chainID
// expects. planGenesisCount is the number of InitThenRunTo steps in the
// chain's plan.
func ExpectedGenesisCount(got, planGenesisCount int64) error {
	if got != planGenesisCount {
		return xerrors.ArchiveIntegrity.Newf(
			"archive has %d geneses, expected %d for this chain's plan", got, planGenesisCount)
	}
	return nil
}

// IndexDB is the relational-index query surface Index* checks run against.
// *index.Indexer does not expose raw SQL, so the checker opens its own
// read-only handle on the same database.
type IndexDB struct {
	db *sql.DB
}

// OpenIndexDB opens a read-only handle on the event index database at
// dbURL for the integrity scans below.
func OpenIndexDB(dbURL string) (*IndexDB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, xerrors.IndexConflict.Wrap(err, "opening event index for integrity check")
	}
	return &IndexDB{db: db}, nil
}

// Close releases the handle.
func (d *IndexDB) Close() error {
	return d.db.Close()
}

const indexGapQuery = `
WITH numbered_blocks AS (
	SELECT height, LEAD(height) OVER (ORDER BY height) AS next_height
	FROM blocks
)
SELECT height + 1 AS gap_start, next_height - 1 AS gap_end
FROM numbered_blocks
WHERE next_height - height > 1
`

// Gaps performs the gap scan over the index's blocks table.
func (d *IndexDB) Gaps(ctx context.Context) ([]Gap, error) {
	var gaps []Gap
	err := sqlutil.ForQueryRows(ctx, d.db, indexGapQuery, func(start, end int64) error {
		gaps = append(gaps, Gap{Start: start, End: end})
		return nil
	})
	if err != nil {
		return nil, xerrors.IndexConflict.Wrap(err, "scanning for index gaps")
	}
	return gaps, nil
}

// BlockCount returns the index's total indexed block count, tolerating
// either the expected count or expected-1 (allows one-behind ingest, spec
// §4.8).
func (d *IndexDB) BlockCount(ctx context.Context, expected int64) error {
	var count int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count); err != nil {
		return xerrors.IndexConflict.Wrap(err, "counting indexed blocks")
	}
	if count != expected && count != expected-1 {
		return xerrors.IndexConflict.Newf("index has %d blocks, expected %d or %d", count, expected, expected-1)
	}
	return nil
}

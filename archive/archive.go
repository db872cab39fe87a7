// Package archive implements the content-addressed, append-only blob store
// over a local embedded SQL database that holds blocks and geneses keyed by
// height.
//
// The schema and synchronous-write tradeoff are grounded directly on the
// original program's storage.rs: blobs are stored once, out of line from
// the height-keyed blocks/geneses tables, so a height scan (last_height,
// gap checks) never touches block payloads.
package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// version is the fixed, opaque metadata tag. A mismatch on open is fatal.
const version = "reindexer-archive-v1"

// Archive is a handle on an archive database. It is safe for concurrent use;
// writes serialize through SQL transactions.
type Archive struct {
	db *sql.DB
}

// Open creates the schema if absent, then either initializes metadata with
// the supplied chainID or, if metadata already exists, verifies the stored
// version and chain id match. path == "" opens an in-memory database, for
// tests.
//
// A chain-id mismatch is fatal: an archive is bound to one chain for life.
func Open(ctx context.Context, path string, chainID string) (*Archive, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=OFF", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, xerrors.SourceAvailability.Wrap(err, "opening archive database")
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}
	if err := a.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := a.bindMetadata(ctx, chainID); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the archive's database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			version TEXT NOT NULL,
			chain_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			rowid INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			height INTEGER NOT NULL PRIMARY KEY,
			data_id INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_data_id ON blocks(data_id)`,
		`CREATE TABLE IF NOT EXISTS geneses (
			initial_height INTEGER NOT NULL PRIMARY KEY,
			data_id INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_geneses_data_id ON geneses(data_id)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.ArchiveIntegrity.Wrapf(err, "creating archive schema: %s", stmt)
		}
	}
	return nil
}

func (a *Archive) bindMetadata(ctx context.Context, chainID string) error {
	row := a.db.QueryRowContext(ctx, `SELECT version, chain_id FROM metadata LIMIT 1`)
	var gotVersion, gotChainID string
	switch err := row.Scan(&gotVersion, &gotChainID); err {
	case sql.ErrNoRows:
		if chainID == "" {
			return xerrors.ArchiveIntegrity.New("opening a fresh archive requires a chain id")
		}
		_, err := a.db.ExecContext(ctx, `INSERT INTO metadata (version, chain_id) VALUES (?, ?)`, version, chainID)
		if err != nil {
			return xerrors.ArchiveIntegrity.Wrap(err, "writing archive metadata")
		}
		return nil
	case nil:
		if gotVersion != version {
			return xerrors.ArchiveIntegrity.Newf("mismatched archive version: expected %q, got %q", version, gotVersion)
		}
		if chainID != "" && chainID != gotChainID {
			return xerrors.ArchiveIntegrity.Newf("archive is bound to chain id %q, cannot open as %q", gotChainID, chainID)
		}
		return nil
	default:
		return xerrors.ArchiveIntegrity.Wrap(err, "reading archive metadata")
	}
}

// ChainID returns the chain id this archive is bound to.
func (a *Archive) ChainID(ctx context.Context) (string, error) {
	var chainID string
	err := a.db.QueryRowContext(ctx, `SELECT chain_id FROM metadata LIMIT 1`).Scan(&chainID)
	if err != nil {
		return "", xerrors.ArchiveIntegrity.Wrap(err, "reading archive chain id")
	}
	return chainID, nil
}

// PutBlock inserts a block, failing if a block at that height already
// exists.
func (a *Archive) PutBlock(ctx context.Context, b block.Block) error {
	encoded, err := block.Encode(b)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "beginning put_block transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM blocks WHERE height = ?`, b.Height()).Scan(&exists)
	switch err {
	case nil:
		return xerrors.ArchiveIntegrity.Newf("block at height %d already exists", b.Height())
	case sql.ErrNoRows:
		// expected path
	default:
		return xerrors.ArchiveIntegrity.Wrap(err, "checking for existing block")
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO blobs(data) VALUES (?)`, encoded)
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "inserting block blob")
	}
	dataID, err := res.LastInsertId()
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "reading inserted block blob rowid")
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO blocks(height, data_id) VALUES (?, ?)`, b.Height(), dataID); err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "inserting block row")
	}

	if err := tx.Commit(); err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "committing put_block transaction")
	}
	return nil
}

// PutGenesis inserts a genesis document, or is a no-op if a genesis at the
// same initial_height already exists.
func (a *Archive) PutGenesis(ctx context.Context, g block.Genesis) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "beginning put_genesis transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM geneses WHERE initial_height = ?`, g.InitialHeight).Scan(&exists)
	switch err {
	case nil:
		// Already present: no-op.
		return nil
	case sql.ErrNoRows:
		// expected path
	default:
		return xerrors.ArchiveIntegrity.Wrap(err, "checking for existing genesis")
	}

	encoded, err := block.EncodeGenesis(g)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO blobs(data) VALUES (?)`, encoded)
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "inserting genesis blob")
	}
	dataID, err := res.LastInsertId()
	if err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "reading inserted genesis blob rowid")
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO geneses(initial_height, data_id) VALUES (?, ?)`, g.InitialHeight, dataID); err != nil {
		return xerrors.ArchiveIntegrity.Wrap(err, "inserting genesis row")
	}

	return tx.Commit()
}

// GetBlock retrieves the block at height, or (zero, false) if absent.
func (a *Archive) GetBlock(ctx context.Context, height int64) (block.Block, bool, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT data FROM blocks JOIN blobs ON data_id = blobs.rowid WHERE height = ?`, height,
	).Scan(&data)
	switch err {
	case nil:
		b, err := block.Decode(data)
		return b, true, err
	case sql.ErrNoRows:
		return block.Block{}, false, nil
	default:
		return block.Block{}, false, xerrors.ArchiveIntegrity.Wrap(err, "reading block")
	}
}

// GetGenesis retrieves the genesis at initialHeight, or (zero, false) if
// absent.
func (a *Archive) GetGenesis(ctx context.Context, initialHeight int64) (block.Genesis, bool, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT data FROM geneses JOIN blobs ON data_id = blobs.rowid WHERE initial_height = ?`, initialHeight,
	).Scan(&data)
	switch err {
	case nil:
		g, err := block.DecodeGenesis(data)
		return g, true, err
	case sql.ErrNoRows:
		return block.Genesis{}, false, nil
	default:
		return block.Genesis{}, false, xerrors.ArchiveIntegrity.Wrap(err, "reading genesis")
	}
}

// BlockExists reports whether a block at height is present.
func (a *Archive) BlockExists(ctx context.Context, height int64) (bool, error) {
	var exists int
	err := a.db.QueryRowContext(ctx, `SELECT 1 FROM blocks WHERE height = ?`, height).Scan(&exists)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, xerrors.ArchiveIntegrity.Wrap(err, "checking block existence")
	}
}

// GenesisExists reports whether a genesis at initialHeight is present.
func (a *Archive) GenesisExists(ctx context.Context, initialHeight int64) (bool, error) {
	var exists int
	err := a.db.QueryRowContext(ctx, `SELECT 1 FROM geneses WHERE initial_height = ?`, initialHeight).Scan(&exists)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, xerrors.ArchiveIntegrity.Wrap(err, "checking genesis existence")
	}
}

// LastHeight returns MAX(height) over blocks, or (0, false) if the archive
// is empty.
func (a *Archive) LastHeight(ctx context.Context) (int64, bool, error) {
	var height sql.NullInt64
	err := a.db.QueryRowContext(ctx, `SELECT MAX(height) FROM blocks`).Scan(&height)
	if err != nil {
		return 0, false, xerrors.ArchiveIntegrity.Wrap(err, "reading last archived height")
	}
	if !height.Valid {
		return 0, false, nil
	}
	return height.Int64, true, nil
}

// FirstHeight returns MIN(height) over blocks, or (0, false) if the archive
// is empty.
func (a *Archive) FirstHeight(ctx context.Context) (int64, bool, error) {
	var height sql.NullInt64
	err := a.db.QueryRowContext(ctx, `SELECT MIN(height) FROM blocks`).Scan(&height)
	if err != nil {
		return 0, false, xerrors.ArchiveIntegrity.Wrap(err, "reading first archived height")
	}
	if !height.Valid {
		return 0, false, nil
	}
	return height.Int64, true, nil
}

// GenesisCount returns the total number of geneses stored, used by the
// integrity checker's genesis-count scan.
func (a *Archive) GenesisCount(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geneses`).Scan(&count)
	if err != nil {
		return 0, xerrors.ArchiveIntegrity.Wrap(err, "counting geneses")
	}
	return count, nil
}

// BlockGap is a contiguous range of missing heights.
type BlockGap struct {
	Start int64
	End   int64
}

const gapQuery = `
WITH numbered_blocks AS (
	SELECT height, LEAD(height) OVER (ORDER BY height) AS next_height
	FROM blocks
)
SELECT height + 1 AS gap_start, next_height - 1 AS gap_end
FROM numbered_blocks
WHERE next_height - height > 1
`

// Gaps performs the gap scan over the archive's blocks table. An empty
// result means the archived heights are contiguous.
func (a *Archive) Gaps(ctx context.Context) ([]BlockGap, error) {
	var gaps []BlockGap
	err := sqlutil.ForQueryRows(ctx, a.db, gapQuery, func(start, end int64) error {
		gaps = append(gaps, BlockGap{Start: start, End: end})
		return nil
	})
	if err != nil {
		return nil, xerrors.ArchiveIntegrity.Wrap(err, "scanning for archive gaps")
	}
	return gaps, nil
}

// Package index implements the event indexer: a transactional writer into
// a relational event index enforcing per-block/per-tx idempotence. The
// relational-store shape follows stellar-slingshot's lib/pq-backed
// peg-chain indexer; the Event/Attribute model being written mirrors the
// ABCI wire types.
package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/cosmos-archival/reindexer/compat"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// TxContext scopes an Events call to a single delivered transaction.
type TxContext struct {
	Index  int
	Tx     []byte
	Result compat.TxResult
}

// Indexer is a handle on the event index database. Writes for one block
// run inside a single transaction opened by EnterBlock and committed by
// EndBlock; callers must pair every EnterBlock with exactly one EndBlock
// (or abandon the block via Abort on failure).
type Indexer struct {
	db             *sql.DB
	allowExisting  bool
	tx             *sql.Tx
	blockID        int64
	blockHeight    int64
	blockPreexists bool
}

// Open opens (and, if absent, creates the schema for) the event index at
// dbURL, a postgres connection string.
func Open(ctx context.Context, dbURL string, allowExistingData bool) (*Indexer, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, xerrors.IndexConflict.Wrap(err, "opening event index database")
	}
	idx := &Indexer{db: db, allowExisting: allowExistingData}
	if err := idx.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close releases the indexer's database handle.
func (idx *Indexer) Close() error {
	return idx.db.Close()
}

func (idx *Indexer) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			rowid BIGSERIAL PRIMARY KEY,
			height BIGINT NOT NULL UNIQUE,
			chain_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tx_results (
			rowid BIGSERIAL PRIMARY KEY,
			block_id BIGINT NOT NULL REFERENCES blocks(rowid),
			index INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			tx_hash TEXT NOT NULL,
			tx_result_bytes BYTEA NOT NULL,
			UNIQUE(block_id, index)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			rowid BIGSERIAL PRIMARY KEY,
			block_id BIGINT NOT NULL REFERENCES blocks(rowid),
			tx_id BIGINT REFERENCES tx_results(rowid),
			kind TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attributes (
			event_id BIGINT NOT NULL REFERENCES events(rowid),
			key BYTEA NOT NULL,
			composite_key TEXT NOT NULL,
			value BYTEA NOT NULL
		)`,
		`CREATE SCHEMA IF NOT EXISTS debug`,
		`CREATE TABLE IF NOT EXISTS debug.app_hash (
			rowid BIGSERIAL PRIMARY KEY,
			block_id BIGINT NOT NULL UNIQUE REFERENCES blocks(rowid),
			app_hash BYTEA NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := idx.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.IndexConflict.Wrapf(err, "creating event index schema: %s", stmt)
		}
	}
	return nil
}

// EnterBlock inserts or looks up the block row at height and opens the
// per-block transaction every subsequent Events/EndBlock call runs inside.
// It fails if the block already exists and allow_existing_data is false.
func (idx *Indexer) EnterBlock(ctx context.Context, height int64, chainID string) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.IndexConflict.Wrap(err, "beginning block transaction")
	}

	var blockID int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM blocks WHERE height = $1`, height).Scan(&blockID)
	switch err {
	case nil:
		if !idx.allowExisting {
			tx.Rollback()
			return xerrors.IndexConflict.Newf("block at height %d already indexed", height)
		}
		idx.blockPreexists = true
	case sql.ErrNoRows:
		idx.blockPreexists = false
		err = tx.QueryRowContext(ctx,
			`INSERT INTO blocks(height, chain_id) VALUES ($1, $2) RETURNING rowid`,
			height, chainID,
		).Scan(&blockID)
		if err != nil {
			tx.Rollback()
			return xerrors.IndexConflict.Wrap(err, "inserting block row")
		}
	default:
		tx.Rollback()
		return xerrors.IndexConflict.Wrap(err, "looking up block row")
	}

	idx.tx = tx
	idx.blockID = blockID
	idx.blockHeight = height

	if idx.blockPreexists && idx.allowExisting {
		return nil
	}
	return idx.writeEvent(ctx, nil, compat.Event{
		Kind:       "block",
		Attributes: []compat.Attribute{{Key: []byte("height"), Value: []byte(fmt.Sprintf("%d", height)), Indexed: true}},
	})
}

// Events writes a batch of application events, optionally scoped to a
// delivered transaction. Under allow_existing_data, a call is skipped
// entirely if the tx row already exists (tx-scoped) or the block
// pre-existed (block-scoped) -- idempotence is enforced at block/tx
// granularity, never by diffing event payloads.
func (idx *Indexer) Events(ctx context.Context, events []compat.Event, txc *TxContext) error {
	if idx.tx == nil {
		return xerrors.IndexConflict.New("events called without an open EnterBlock transaction")
	}

	var txID *int64
	if txc != nil {
		id, skip, err := idx.enterTx(ctx, *txc)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		txID = &id
	} else if idx.blockPreexists && idx.allowExisting {
		return nil
	}

	for _, e := range events {
		if err := idx.writeEvent(ctx, txID, e); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) enterTx(ctx context.Context, txc TxContext) (id int64, skip bool, err error) {
	if idx.allowExisting {
		err := idx.tx.QueryRowContext(ctx,
			`SELECT rowid FROM tx_results WHERE block_id = $1 AND index = $2`, idx.blockID, txc.Index,
		).Scan(&id)
		if err == nil {
			return id, true, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, xerrors.IndexConflict.Wrap(err, "looking up existing tx row")
		}
	}

	hashSum := sha256.Sum256(txc.Tx)
	hash := strings.ToUpper(hex.EncodeToString(hashSum[:]))

	resultBytes, err := encodeTxResult(txc.Result)
	if err != nil {
		return 0, false, err
	}

	err = idx.tx.QueryRowContext(ctx,
		`INSERT INTO tx_results(block_id, index, tx_hash, tx_result_bytes) VALUES ($1, $2, $3, $4) RETURNING rowid`,
		idx.blockID, txc.Index, hash, resultBytes,
	).Scan(&id)
	if err != nil {
		if !idx.allowExisting {
			return 0, false, xerrors.IndexConflict.Wrapf(err, "inserting tx row at index %d", txc.Index)
		}
		return 0, false, xerrors.IndexConflict.Wrapf(err, "inserting tx row at index %d", txc.Index)
	}

	if err := idx.writeEvent(ctx, &id, compat.Event{
		Kind:       "tx",
		Attributes: []compat.Attribute{{Key: []byte("hash"), Value: []byte(hash), Indexed: true}},
	}); err != nil {
		return 0, false, err
	}
	if err := idx.writeEvent(ctx, &id, compat.Event{
		Kind: "tx",
		Attributes: []compat.Attribute{{
			Key: []byte("height"), Value: []byte(fmt.Sprintf("%d", idx.blockHeight)), Indexed: true,
		}},
	}); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

func encodeTxResult(r compat.TxResult) ([]byte, error) {
	abciResult := compat.ToABCITxResult(r)
	return abciResult.Marshal()
}

func (idx *Indexer) writeEvent(ctx context.Context, txID *int64, e compat.Event) error {
	var eventID int64
	err := idx.tx.QueryRowContext(ctx,
		`INSERT INTO events(block_id, tx_id, kind) VALUES ($1, $2, $3) RETURNING rowid`,
		idx.blockID, txID, e.Kind,
	).Scan(&eventID)
	if err != nil {
		return xerrors.IndexConflict.Wrapf(err, "inserting event row for kind %q", e.Kind)
	}
	for _, a := range e.Attributes {
		compositeKey := e.Kind + "." + string(a.Key)
		if _, err := idx.tx.ExecContext(ctx,
			`INSERT INTO attributes(event_id, key, composite_key, value) VALUES ($1, $2, $3, $4)`,
			eventID, a.Key, compositeKey, a.Value,
		); err != nil {
			return xerrors.IndexConflict.Wrapf(err, "inserting attribute %q", compositeKey)
		}
	}
	return nil
}

// EndBlock persists the post-commit application hash and commits the
// block's transaction.
func (idx *Indexer) EndBlock(ctx context.Context, appHash []byte) error {
	if idx.tx == nil {
		return xerrors.IndexConflict.New("end_block called without an open EnterBlock transaction")
	}
	defer func() { idx.tx = nil }()

	if !(idx.blockPreexists && idx.allowExisting) {
		if _, err := idx.tx.ExecContext(ctx,
			`INSERT INTO debug.app_hash(block_id, app_hash) VALUES ($1, $2)
			 ON CONFLICT (block_id) DO NOTHING`,
			idx.blockID, appHash,
		); err != nil {
			return xerrors.IndexConflict.Wrap(err, "inserting app hash row")
		}
	}
	if err := idx.tx.Commit(); err != nil {
		return xerrors.IndexConflict.Wrap(err, "committing block transaction")
	}
	return nil
}

// Abort rolls back the currently open per-block transaction, if any. The
// regenerator calls this when Drive fails partway through a block.
func (idx *Indexer) Abort() {
	if idx.tx != nil {
		idx.tx.Rollback()
		idx.tx = nil
	}
}

// LastHeight reports the highest indexed height, used by the regenerator
// to resume a truncated plan.
func (idx *Indexer) LastHeight(ctx context.Context) (int64, bool, error) {
	var height sql.NullInt64
	err := idx.db.QueryRowContext(ctx, `SELECT MAX(height) FROM blocks`).Scan(&height)
	if err != nil {
		return 0, false, xerrors.IndexConflict.Wrap(err, "reading last indexed height")
	}
	if !height.Valid {
		return 0, false, nil
	}
	return height.Int64, true, nil
}

package source

import (
	"context"
	"encoding/binary"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// heightKey matches the big-endian height-prefixed key layout a CometBFT
// node's own block store uses, so a LocalSource can be pointed directly at
// a node's data directory.
func heightKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'H'
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

const genesisKey = "G"

// LocalSource reads blocks directly out of an embedded key-value store,
// the same one a consensus node keeps its own block data in. The original
// program reached this store through a cgo bridge into a small Go helper
// binary (cometbft.rs's c_store_new/c_store_height/c_store_block_by_height);
// this engine is already Go, so it opens the store directly instead of
// crossing an FFI boundary, while keeping the same exclusivity contract: at
// most one LocalSource may hold the store open at a time.
type LocalSource struct {
	mu sync.Mutex
	db dbm.DB
}

// OpenLocalSource opens the consensus store at dir, using backend (e.g.
// "goleveldb", "memdb"). It fails if another process or LocalSource already
// holds the directory open, mirroring the FFI store's single-handle
// contract.
func OpenLocalSource(dir, backend string) (*LocalSource, error) {
	db, err := dbm.NewDB("blockstore", dbm.BackendType(backend), dir)
	if err != nil {
		return nil, xerrors.SourceAvailability.Wrap(err, "opening local consensus store")
	}
	return &LocalSource{db: db}, nil
}

// Close releases the store's handle, analogous to the FFI store's
// c_store_delete.
func (l *LocalSource) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

// GetGenesis returns the genesis document recorded alongside the block
// data, if one was stored.
func (l *LocalSource) GetGenesis(ctx context.Context) (block.Genesis, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.db.Get([]byte(genesisKey))
	if err != nil {
		return block.Genesis{}, xerrors.SourceAvailability.Wrap(err, "reading local genesis")
	}
	if data == nil {
		return block.Genesis{}, xerrors.SourceAvailability.New("local consensus store has no genesis recorded")
	}
	return block.DecodeGenesis(data)
}

// GetHeightBounds scans the store's height-keyed range to find the lowest
// and highest heights present.
func (l *LocalSource) GetHeightBounds(ctx context.Context) (HeightBounds, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	iter, err := l.db.Iterator(heightKey(0), heightPrefixEnd())
	if err != nil {
		return HeightBounds{}, false, xerrors.SourceAvailability.Wrap(err, "iterating local consensus store")
	}
	defer iter.Close()

	if !iter.Valid() {
		return HeightBounds{}, false, nil
	}
	start := binary.BigEndian.Uint64(iter.Key()[1:])

	end := start
	for ; iter.Valid(); iter.Next() {
		end = binary.BigEndian.Uint64(iter.Key()[1:])
	}
	return HeightBounds{Start: start, End: end}, true, nil
}

func heightPrefixEnd() []byte {
	return []byte{'H' + 1}
}

// GetBlock returns the block at height, or (zero, false) if it is not
// present in the store.
func (l *LocalSource) GetBlock(ctx context.Context, height uint64) (block.Block, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.db.Get(heightKey(height))
	if err != nil {
		return block.Block{}, false, xerrors.SourceAvailability.Wrap(err, "reading local block")
	}
	if data == nil {
		return block.Block{}, false, nil
	}
	b, err := block.Decode(data)
	return b, err == nil, err
}

// PutBlock records a block in the store, for tests and for populating a
// local store that mirrors a running node's data.
func (l *LocalSource) PutBlock(ctx context.Context, b block.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	encoded, err := block.Encode(b)
	if err != nil {
		return err
	}
	if err := l.db.Set(heightKey(uint64(b.Height())), encoded); err != nil {
		return xerrors.SourceAvailability.Wrap(err, "writing local block")
	}
	return nil
}

// PutGenesis records the genesis document in the store.
func (l *LocalSource) PutGenesis(ctx context.Context, g block.Genesis) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	encoded, err := block.EncodeGenesis(g)
	if err != nil {
		return err
	}
	if err := l.db.Set([]byte(genesisKey), encoded); err != nil {
		return xerrors.SourceAvailability.Wrap(err, "writing local genesis")
	}
	return nil
}

// StreamBlocks reads sequentially from the local store's current contents.
// Unlike RemoteSource, a local store never grows while we hold it open, so
// the stream always terminates once height exceeds the highest stored
// block (or end, if lower).
func (l *LocalSource) StreamBlocks(ctx context.Context, start uint64, end *uint64) <-chan StreamResult {
	out := make(chan StreamResult, 10)

	go func() {
		defer close(out)

		bounds, ok, err := l.GetHeightBounds(ctx)
		if err != nil {
			out <- StreamResult{Err: err}
			return
		}
		if !ok {
			return
		}

		stop := bounds.End
		if end != nil && *end < stop {
			stop = *end
		}

		for height := start; height <= stop; height++ {
			b, found, err := l.GetBlock(ctx, height)
			if err != nil {
				out <- StreamResult{Err: err}
				return
			}
			if !found {
				continue
			}
			select {
			case out <- StreamResult{Height: height, Block: b}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

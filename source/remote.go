package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	"github.com/cosmos/gogoproto/jsonpb"

	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

const (
	blocksPerRequest = 100
	requestPause     = 100 * time.Millisecond
	pollPause        = 1 * time.Second
)

// RemoteSource reads blocks from a remote node's CometBFT RPC, following
// the same query/poll strategy as the original program's RemoteStore.
type RemoteSource struct {
	baseURL string
	client  *http.Client
}

// NewRemoteSource builds a source backed by a CometBFT RPC endpoint, e.g.
// "http://localhost:26657".
func NewRemoteSource(baseURL string) *RemoteSource {
	return &RemoteSource{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func (r *RemoteSource) request(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/%s", r.baseURL, path)
	if len(query) > 0 {
		u = u + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, xerrors.SourceAvailability.Wrap(err, "building rpc request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, xerrors.SourceAvailability.Wrap(err, "performing rpc request")
	}
	defer resp.Body.Close()

	var env rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, xerrors.SourceProtocol.Wrap(err, "decoding rpc response")
	}
	if len(env.Error) > 0 {
		return nil, xerrors.SourceProtocol.Newf("rpc error: %s", string(env.Error))
	}
	return env.Result, nil
}

type rpcGenesisResult struct {
	Genesis json.RawMessage `json:"genesis"`
}

// GetGenesis fetches the remote node's /genesis.
func (r *RemoteSource) GetGenesis(ctx context.Context) (block.Genesis, error) {
	result, err := r.request(ctx, "genesis", nil)
	if err != nil {
		return block.Genesis{}, err
	}
	var g rpcGenesisResult
	if err := json.Unmarshal(result, &g); err != nil {
		return block.Genesis{}, xerrors.SourceProtocol.Wrap(err, "decoding genesis rpc result")
	}
	return block.DecodeGenesis(g.Genesis)
}

type rpcStatusResult struct {
	SyncInfo struct {
		EarliestBlockHeight string `json:"earliest_block_height"`
		LatestBlockHeight   string `json:"latest_block_height"`
	} `json:"sync_info"`
}

// GetHeightBounds fetches the remote node's /status.
func (r *RemoteSource) GetHeightBounds(ctx context.Context) (HeightBounds, bool, error) {
	result, err := r.request(ctx, "status", nil)
	if err != nil {
		return HeightBounds{}, false, err
	}
	var s rpcStatusResult
	if err := json.Unmarshal(result, &s); err != nil {
		return HeightBounds{}, false, xerrors.SourceProtocol.Wrap(err, "decoding status rpc result")
	}
	start, err := strconv.ParseUint(s.SyncInfo.EarliestBlockHeight, 10, 64)
	if err != nil {
		return HeightBounds{}, false, xerrors.SourceProtocol.Wrap(err, "parsing earliest_block_height")
	}
	end, err := strconv.ParseUint(s.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return HeightBounds{}, false, xerrors.SourceProtocol.Wrap(err, "parsing latest_block_height")
	}
	return HeightBounds{Start: start, End: end}, true, nil
}

type rpcBlockSearchResult struct {
	Blocks []struct {
		Block json.RawMessage `json:"block"`
	} `json:"blocks"`
}

func decodeRPCBlock(raw json.RawMessage) (block.Block, error) {
	pb := &tmproto.Block{}
	if err := jsonpb.Unmarshal(bytes.NewReader(raw), pb); err != nil {
		return block.Block{}, xerrors.SourceProtocol.Wrap(err, "decoding block JSON from rpc")
	}
	return block.Block{
		Header:     pb.Header,
		Data:       pb.Data,
		Evidence:   pb.Evidence,
		LastCommit: pb.LastCommit,
	}, nil
}

// getBlocks fetches all blocks with height in [start, end) via block_search,
// in ascending order, mirroring the original's get_blocks.
func (r *RemoteSource) getBlocks(ctx context.Context, start, end uint64) ([]block.Block, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("\"block.height >= %d AND block.height < %d\"", start, end))
	query.Set("per_page", "100")
	query.Set("page", "1")
	query.Set("order_by", "\"asc\"")

	result, err := r.request(ctx, "block_search", query)
	if err != nil {
		return nil, err
	}
	var bs rpcBlockSearchResult
	if err := json.Unmarshal(result, &bs); err != nil {
		return nil, xerrors.SourceProtocol.Wrap(err, "decoding block_search rpc result")
	}

	out := make([]block.Block, 0, len(bs.Blocks))
	for _, entry := range bs.Blocks {
		b, err := decodeRPCBlock(entry.Block)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// GetBlock fetches the single block at height, or (zero, false) if the
// remote node does not have it.
func (r *RemoteSource) GetBlock(ctx context.Context, height uint64) (block.Block, bool, error) {
	blocks, err := r.getBlocks(ctx, height, height+1)
	if err != nil {
		return block.Block{}, false, err
	}
	if len(blocks) == 0 {
		return block.Block{}, false, nil
	}
	return blocks[0], true, nil
}

// StreamBlocks fetches blocks in batches of blocksPerRequest up to the
// node's current height, then switches to polling one block at a time,
// following the original's stream_blocks exactly: batched catch-up, then
// live tail.
func (r *RemoteSource) StreamBlocks(ctx context.Context, start uint64, end *uint64) <-chan StreamResult {
	out := make(chan StreamResult, 10)

	go func() {
		defer close(out)

		bounds, ok, err := r.GetHeightBounds(ctx)
		if err != nil {
			out <- StreamResult{Err: err}
			return
		}
		if !ok {
			out <- StreamResult{Err: xerrors.SourceAvailability.New("remote rpc did not return any height bounds")}
			return
		}

		startBlock := bounds.Start
		if start > startBlock {
			startBlock = start
		}
		endBlock := bounds.End
		if end != nil && *end < endBlock {
			endBlock = *end
		}

		height := startBlock
		for height <= endBlock {
			requestStart := time.Now()
			blocks, err := r.getBlocks(ctx, height, height+blocksPerRequest)
			if err != nil {
				out <- StreamResult{Err: err}
				return
			}
			if len(blocks) == 0 {
				out <- StreamResult{Err: xerrors.SourceProtocol.New("rpc returned an empty list of blocks")}
				return
			}
			for _, b := range blocks {
				if uint64(b.Height()) != height {
					out <- StreamResult{Err: xerrors.SourceProtocol.Newf("unexpected block height: %d", b.Height())}
					return
				}
				select {
				case out <- StreamResult{Height: height, Block: b}:
				case <-ctx.Done():
					return
				}
				height++
			}
			sleepUntil(ctx, requestStart.Add(requestPause))
		}

		for end == nil || height <= *end {
			requestStart := time.Now()
			b, found, err := r.GetBlock(ctx, height)
			if err != nil {
				out <- StreamResult{Err: err}
				return
			}
			if found {
				select {
				case out <- StreamResult{Height: height, Block: b}:
				case <-ctx.Done():
					return
				}
				height++
			}
			sleepUntil(ctx, requestStart.Add(pollPause))
		}
	}()

	return out
}

func sleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}


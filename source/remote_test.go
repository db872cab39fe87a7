package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	"github.com/cosmos/gogoproto/jsonpb"
	"gotest.tools/v3/assert"

	"github.com/cosmos-archival/reindexer/block"
)

func TestRemoteSourceGetHeightBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"sync_info":{"earliest_block_height":"5","latest_block_height":"42"}}}`)
	}))
	defer srv.Close()

	rs := NewRemoteSource(srv.URL)
	bounds, ok, err := rs.GetHeightBounds(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, bounds.Start, uint64(5))
	assert.Equal(t, bounds.End, uint64(42))
}

func TestRemoteSourceSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":-32603,"message":"boom"}}`)
	}))
	defer srv.Close()

	rs := NewRemoteSource(srv.URL)
	_, _, err := rs.GetHeightBounds(context.Background())
	assert.Assert(t, err != nil)
}

func TestRemoteSourceGetGenesis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"genesis":{"chain_id":"test-chain","initial_height":"1"}}}`)
	}))
	defer srv.Close()

	rs := NewRemoteSource(srv.URL)
	g, err := rs.GetGenesis(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, g.ChainID, "test-chain")
}

func TestRemoteSourceStreamBlocksRejectsUnexpectedHeight(t *testing.T) {
	wrongHeightBlock := block.TestBlock(7)
	pb := &tmproto.Block{
		Header:     wrongHeightBlock.Header,
		Data:       wrongHeightBlock.Data,
		Evidence:   wrongHeightBlock.Evidence,
		LastCommit: wrongHeightBlock.LastCommit,
	}
	marshaler := jsonpb.Marshaler{}
	var buf bytes.Buffer
	assert.NilError(t, marshaler.Marshal(&buf, pb))
	blockJSON := buf.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			fmt.Fprint(w, `{"result":{"sync_info":{"earliest_block_height":"5","latest_block_height":"10"}}}`)
		case strings.HasSuffix(r.URL.Path, "/block_search"):
			fmt.Fprintf(w, `{"result":{"blocks":[{"block":%s}]}}`, blockJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rs := NewRemoteSource(srv.URL)
	end := uint64(10)
	results := rs.StreamBlocks(context.Background(), 5, &end)

	var gotErr error
	for res := range results {
		if res.Err != nil {
			gotErr = res.Err
			break
		}
	}
	assert.Assert(t, gotErr != nil)
	assert.ErrorContains(t, gotErr, "unexpected block height")
}

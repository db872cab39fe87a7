// Package block defines the canonical in-memory representation of a block
// and a genesis document, with byte-exact encode/decode.
package block

import (
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	"github.com/cosmos/gogoproto/proto"

	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Block is the canonical representation of a single block in an archive.
//
// It deliberately reuses the consensus engine's own wire types for the
// header, data, evidence and last-commit fields rather than redeclaring
// them, so that Encode/Decode is exact: the wire bytes an archived block
// was produced from are the same bytes produced by Encode(Decode(bytes)).
type Block struct {
	Header     tmproto.Header
	Data       tmproto.Data
	Evidence   tmproto.EvidenceList
	LastCommit *tmproto.Commit
}

// Height returns the block's height, a positive integer unique within an
// archive.
func (b Block) Height() int64 {
	return b.Header.Height
}

// ChainID returns the chain id recorded in the block's header.
func (b Block) ChainID() string {
	return b.Header.ChainID
}

// Txs returns the block's ordered sequence of raw transaction byte strings.
func (b Block) Txs() [][]byte {
	return b.Data.Txs
}

func (b Block) toProto() *tmproto.Block {
	return &tmproto.Block{
		Header:     b.Header,
		Data:       b.Data,
		Evidence:   b.Evidence,
		LastCommit: b.LastCommit,
	}
}

func fromProto(pb *tmproto.Block) Block {
	return Block{
		Header:     pb.Header,
		Data:       pb.Data,
		Evidence:   pb.Evidence,
		LastCommit: pb.LastCommit,
	}
}

// Encode serializes a block to its canonical wire representation.
func Encode(b Block) ([]byte, error) {
	out, err := proto.Marshal(b.toProto())
	if err != nil {
		return nil, xerrors.SourceProtocol.Wrap(err, "encoding block")
	}
	return out, nil
}

// Decode parses a block from its canonical wire representation.
//
// Decode(Encode(b)) == b for any Block produced by this package.
func Decode(data []byte) (Block, error) {
	pb := &tmproto.Block{}
	if err := proto.Unmarshal(data, pb); err != nil {
		return Block{}, xerrors.SourceProtocol.Wrap(err, "decoding block")
	}
	return fromProto(pb), nil
}

// TestBlock returns a fixed, deterministic block suitable for round-trip and
// archive tests.
func TestBlock(height int64) Block {
	return Block{
		Header: tmproto.Header{
			ChainID:         "test-chain",
			Height:          height,
			AppHash:         []byte{0xAB, 0xCD},
			ValidatorsHash:  []byte{0x01, 0x02, 0x03},
			ProposerAddress: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		},
		Data: tmproto.Data{
			Txs: [][]byte{[]byte("tx-one"), []byte("tx-two")},
		},
		LastCommit: &tmproto.Commit{
			Height: height - 1,
			Round:  0,
		},
	}
}

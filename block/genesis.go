package block

import (
	"encoding/json"
	"strconv"

	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Genesis is the opaque JSON-typed genesis document. It carries at minimum a
// chain id and an initial height, plus an application-state subtree the
// engine passes through unchanged.
//
// Raw holds the exact bytes the document was decoded from (or will be
// encoded to), so that an archived genesis round-trips byte-exactly even
// though the engine only inspects two of its fields.
type Genesis struct {
	Raw           json.RawMessage
	ChainID       string
	InitialHeight int64
}

type genesisFields struct {
	ChainID       string `json:"chain_id"`
	InitialHeight int64  `json:"initial_height,string"`
}

// EncodeGenesis returns the genesis document's canonical wire representation.
func EncodeGenesis(g Genesis) ([]byte, error) {
	if len(g.Raw) == 0 {
		return nil, xerrors.SourceProtocol.New("genesis has no raw document to encode")
	}
	return g.Raw, nil
}

// DecodeGenesis parses a genesis document, extracting chain_id and
// initial_height while preserving the full document verbatim in Raw.
func DecodeGenesis(data []byte) (Genesis, error) {
	var fields genesisFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return Genesis{}, xerrors.SourceProtocol.Wrap(err, "decoding genesis document")
	}
	if fields.ChainID == "" {
		return Genesis{}, xerrors.SourceProtocol.New("genesis document missing chain_id")
	}
	if fields.InitialHeight <= 0 {
		return Genesis{}, xerrors.SourceProtocol.New("genesis document missing a positive initial_height")
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Genesis{
		Raw:           raw,
		ChainID:       fields.ChainID,
		InitialHeight: fields.InitialHeight,
	}, nil
}

// TestGenesis returns a fixed genesis document for a given initial height,
// suitable for archive round-trip tests.
func TestGenesis(initialHeight int64) Genesis {
	doc := map[string]interface{}{
		"chain_id":       "test-chain",
		"initial_height": strconv.FormatInt(initialHeight, 10),
		"app_state":      map[string]interface{}{"accounts": []string{}},
	}
	raw, _ := json.Marshal(doc)
	g, err := DecodeGenesis(raw)
	if err != nil {
		panic(err)
	}
	return g
}

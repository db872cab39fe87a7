package block

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestGenesisEncodeDecodeRoundTrip(t *testing.T) {
	g := TestGenesis(100)

	encoded, err := EncodeGenesis(g)
	assert.NilError(t, err)

	decoded, err := DecodeGenesis(encoded)
	assert.NilError(t, err)

	assert.Equal(t, decoded.ChainID, "test-chain")
	assert.Equal(t, decoded.InitialHeight, int64(100))
	assert.DeepEqual(t, []byte(decoded.Raw), []byte(encoded))
}

func TestDecodeGenesisRejectsMissingChainID(t *testing.T) {
	_, err := DecodeGenesis([]byte(`{"initial_height":"1"}`))
	assert.Assert(t, err != nil)
}

func TestDecodeGenesisRejectsNonPositiveInitialHeight(t *testing.T) {
	_, err := DecodeGenesis([]byte(`{"chain_id":"x","initial_height":"0"}`))
	assert.Assert(t, err != nil)
}

func TestEncodeGenesisRejectsEmptyRaw(t *testing.T) {
	_, err := EncodeGenesis(Genesis{ChainID: "x", InitialHeight: 1})
	assert.Assert(t, err != nil)
}

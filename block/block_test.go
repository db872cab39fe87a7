package block

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := TestBlock(42)

	encoded, err := Encode(b)
	assert.NilError(t, err)

	decoded, err := Decode(encoded)
	assert.NilError(t, err)

	assert.Equal(t, decoded.Height(), b.Height())
	assert.Equal(t, decoded.ChainID(), b.ChainID())
	assert.DeepEqual(t, decoded.Txs(), b.Txs())

	reencoded, err := Encode(decoded)
	assert.NilError(t, err)
	assert.DeepEqual(t, encoded, reencoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFF, 0xFF})
	assert.Assert(t, err != nil)
}

func TestHeightAndChainID(t *testing.T) {
	b := TestBlock(7)
	assert.Equal(t, b.Height(), int64(7))
	assert.Equal(t, b.ChainID(), "test-chain")
	assert.Equal(t, len(b.Txs()), 2)
}

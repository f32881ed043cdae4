package ledger

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPaymentAddr = "61cfe224295a282d69edda5fa8de4f131e2b9cd21a6c9235597fa4ff6b"
	testPolicy1     = "3f35615835258addded1c2e169f3a2ab4ae94d606bde030e7947f518"
	testPolicy2     = "4ff5f8e3d43ce6b19ec4197e331e86d0f5e58b02d7a75b5e74cff95d"
	// constr 0 [42], definite length
	testDatumHex = "d87981182a"
)

func mustCbor(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := cbor.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDecodeLegacyCoinOutput(t *testing.T) {
	addr := mustHex(t, testPaymentAddr)
	out, err := DecodeOutput(EraShelley, mustCbor(t, []interface{}{addr, uint64(1_500_000)}))
	require.NoError(t, err)

	assert.Equal(t, EraShelley, out.Era)
	assert.Equal(t, addr, out.Address)
	assert.Equal(t, []Asset{BaseAsset{Quantity: 1_500_000}}, out.Assets)
	assert.Nil(t, out.Datum)
}

func TestDecodeLegacyMultiAssetOutputWithDatumHash(t *testing.T) {
	datumHash := Blake2b256(mustHex(t, testDatumHex))
	value := []interface{}{
		uint64(2_000_000),
		map[cbor.ByteString]map[cbor.ByteString]uint64{
			cbor.ByteString(mustHex(t, testPolicy2)): {cbor.ByteString("b"): 7},
			cbor.ByteString(mustHex(t, testPolicy1)): {cbor.ByteString("z"): 3, cbor.ByteString("a"): 1},
		},
	}
	raw := mustCbor(t, []interface{}{mustHex(t, testPaymentAddr), value, datumHash[:]})

	out, err := DecodeOutput(EraAlonzo, raw)
	require.NoError(t, err)

	require.Len(t, out.Assets, 4)
	assert.Equal(t, BaseAsset{Quantity: 2_000_000}, out.Assets[0])
	first := out.Assets[1].(NativeAsset)
	assert.Equal(t, testPolicy1, first.PolicyID.String())
	assert.Equal(t, []byte("a"), first.Name)
	assert.Equal(t, []byte("z"), out.Assets[2].(NativeAsset).Name)
	assert.Equal(t, testPolicy2, out.Assets[3].(NativeAsset).PolicyID.String())
	assert.Equal(t, HashDatum{Hash: datumHash}, out.Datum)
	assert.Len(t, out.NativePairs(), 3)
}

func TestDecodeLegacyDatumHashBeforeAlonzo(t *testing.T) {
	datumHash := Blake2b256(mustHex(t, testDatumHex))
	raw := mustCbor(t, []interface{}{mustHex(t, testPaymentAddr), uint64(1), datumHash[:]})
	_, err := DecodeOutput(EraMary, raw)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestDecodeMapOutputInlineDatum(t *testing.T) {
	datumRaw := mustHex(t, testDatumHex)
	raw := mustCbor(t, map[uint64]interface{}{
		0: mustHex(t, testPaymentAddr),
		1: uint64(10),
		2: []interface{}{uint64(1), cbor.Tag{Number: 24, Content: datumRaw}},
	})

	out, err := DecodeOutput(EraBabbage, raw)
	require.NoError(t, err)

	inline, ok := out.Datum.(InlineDatum)
	require.True(t, ok, "expected inline datum, got %T", out.Datum)
	assert.Equal(t, datumRaw, inline.Value.Raw)
	assert.NotNil(t, inline.Value.Data)
}

func TestDecodeMapOutputDatumHash(t *testing.T) {
	datumHash := Blake2b256(mustHex(t, testDatumHex))
	raw := mustCbor(t, map[uint64]interface{}{
		0: mustHex(t, testPaymentAddr),
		1: uint64(10),
		2: []interface{}{uint64(0), datumHash[:]},
	})

	out, err := DecodeOutput(EraConway, raw)
	require.NoError(t, err)
	assert.Equal(t, HashDatum{Hash: datumHash}, out.Datum)
}

func TestDecodeMapOutputRejectedBeforeBabbage(t *testing.T) {
	raw := mustCbor(t, map[uint64]interface{}{0: mustHex(t, testPaymentAddr), 1: uint64(10)})
	_, err := DecodeOutput(EraAlonzo, raw)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestDecodeByronOutput(t *testing.T) {
	byronAddr := mustHex(t, "82d818582483581c5d5e698eba3dd9452add99a1af9461beb0ba61b8bece26e7399878dda1024102001a36d41aba")
	raw := append([]byte{0x82}, byronAddr...)
	raw = append(raw, mustCbor(t, uint64(42))...)

	out, err := DecodeOutput(EraByron, raw)
	require.NoError(t, err)
	assert.Equal(t, byronAddr, out.Address)
	assert.IsType(t, ByronAddress{}, out.AddressResult().Address)
}

func TestDecodeOutputGarbage(t *testing.T) {
	for _, raw := range [][]byte{nil, {0x01}, {0x82, 0x01}} {
		_, err := DecodeOutput(EraConway, raw)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	}
}

func TestDecodeDatumCandidatesKeepsOriginalBytes(t *testing.T) {
	definite := mustHex(t, testDatumHex)
	indefinite := mustHex(t, "d8799f182aff")

	list := append([]byte{0x82}, definite...)
	list = append(list, indefinite...)

	pool, err := DecodeDatumCandidates(list)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, definite, pool[0].Raw())
	assert.Equal(t, indefinite, pool[1].Raw())
	assert.NotEqual(t, pool[0].Hash(), pool[1].Hash())

	set := append([]byte{0xd9, 0x01, 0x02}, list...)
	pool, err = DecodeDatumCandidates(set)
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}

func TestDecodeDatumCandidatesDeepNesting(t *testing.T) {
	// 40 nested single element lists around 1. The cbor default limit is 32.
	deep := append(bytes.Repeat([]byte{0x81}, 40), 0x01)
	list := append([]byte{0x81}, deep...)

	pool, err := DecodeDatumCandidates(list)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, deep, pool[0].Raw())

	datum, err := pool[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, Blake2b256(deep), datum.Hash())
}

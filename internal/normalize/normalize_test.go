package normalize

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
)

const (
	policyP1 = "3f35615835258addded1c2e169f3a2ab4ae94d606bde030e7947f518"
	policyP2 = "4ff5f8e3d43ce6b19ec4197e331e86d0f5e58b02d7a75b5e74cff95d"
	policyP3 = "21bd8c2e0df2fbe92137f78dbaba48f62308e52303049f0d628b6c4c"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func pair(t *testing.T, policy, name string) ledger.AssetPair {
	t.Helper()
	p, err := ledger.ParseHash28(policy)
	require.NoError(t, err)
	return ledger.AssetPair{PolicyID: p, Name: []byte(name)}
}

func native(t *testing.T, policy, name string, qty uint64) ledger.NativeAsset {
	p := pair(t, policy, name)
	return ledger.NativeAsset{PolicyID: p.PolicyID, Name: p.Name, Quantity: qty}
}

func TestPaymentCredentialHash(t *testing.T) {
	payment := "3f35615835258addded1c2e169f3a2ab4ae94d606bde030e7947f518"

	base := ledger.DecodeAddress(mustHex(t, "01"+payment+policyP2))
	got, ok := PaymentCredentialHash(base)
	require.True(t, ok)
	assert.Equal(t, payment, got)

	// Same payment part, different stake part.
	other := ledger.DecodeAddress(mustHex(t, "01"+payment+policyP3))
	got2, ok := PaymentCredentialHash(other)
	require.True(t, ok)
	assert.Equal(t, got, got2)

	enterprise := ledger.DecodeAddress(mustHex(t, "61"+payment))
	got3, ok := PaymentCredentialHash(enterprise)
	require.True(t, ok)
	assert.Equal(t, payment, got3)

	// Pointer slot 128, tx 2, cert 3.
	pointer := ledger.DecodeAddress(mustHex(t, "41"+payment+"8100"+"02"+"03"))
	require.NoError(t, pointer.Err)
	got4, ok := PaymentCredentialHash(pointer)
	require.True(t, ok)
	assert.Equal(t, payment, got4)

	script := ledger.DecodeAddress(mustHex(t, "71"+policyP3))
	got5, ok := PaymentCredentialHash(script)
	require.True(t, ok)
	assert.Equal(t, policyP3, got5)
}

func TestPaymentCredentialHashAbsent(t *testing.T) {
	cases := map[string]ledger.AddressResult{
		"decode failure": ledger.DecodeAddress([]byte{0x01, 0x02}),
		"explicit error": {Err: errors.New("boom")},
		"byron":          ledger.DecodeAddress(mustHex(t, "82d818582483581c5d5e698eba3dd9452add99a1af9461beb0ba61b8bece26e7399878dda1024102001a36d41aba")),
		"stake":          ledger.DecodeAddress(mustHex(t, "e1"+policyP2)),
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := PaymentCredentialHash(res)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestAssetAmount(t *testing.T) {
	out := ledger.Output{Assets: []ledger.Asset{
		ledger.BaseAsset{Quantity: 5},
		native(t, policyP1, "N1", 3),
		native(t, policyP2, "N2", 7),
	}}

	assert.Equal(t, uint64(5), AssetAmount(out, ledger.BaseCurrency()))
	assert.Equal(t, uint64(3), AssetAmount(out, ledger.NativeSelector(pair(t, policyP1, "N1"))))
	assert.Equal(t, uint64(0), AssetAmount(out, ledger.NativeSelector(pair(t, policyP3, "N3"))))
	// Same policy, other name.
	assert.Equal(t, uint64(0), AssetAmount(out, ledger.NativeSelector(pair(t, policyP1, "N2"))))
}

func TestAssetAmountSumsRepeatedEntries(t *testing.T) {
	out := ledger.Output{Assets: []ledger.Asset{
		native(t, policyP1, "N1", 2),
		native(t, policyP1, "N1", 4),
	}}
	assert.Equal(t, uint64(6), AssetAmount(out, ledger.NativeSelector(pair(t, policyP1, "N1"))))
	assert.Equal(t, uint64(0), AssetAmount(out, ledger.BaseCurrency()))
	assert.Equal(t, uint64(0), AssetAmount(ledger.Output{}, ledger.BaseCurrency()))
}

func TestAssetAmountSaturates(t *testing.T) {
	out := ledger.Output{Assets: []ledger.Asset{
		ledger.BaseAsset{Quantity: math.MaxUint64 - 1},
		ledger.BaseAsset{Quantity: 5},
		ledger.BaseAsset{Quantity: 1},
	}}
	assert.Equal(t, uint64(math.MaxUint64), AssetAmount(out, ledger.BaseCurrency()))
}

// constr 0 [42]
const datumHex = "d87981182a"

func TestResolveDatumInline(t *testing.T) {
	value, err := ledger.DecodePlutusDatum(mustHex(t, datumHex))
	require.NoError(t, err)
	out := ledger.Output{Datum: ledger.InlineDatum{Value: value}}

	for _, pool := range [][]ledger.DatumCandidate{nil, {ledger.NewDatumCandidate([]byte{0xff})}} {
		got, err := ResolveDatum(out, pool)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, value.Raw, got.Raw)
	}
}

func TestResolveDatumNone(t *testing.T) {
	pool := []ledger.DatumCandidate{ledger.NewDatumCandidate(mustHex(t, datumHex))}
	got, err := ResolveDatum(ledger.Output{}, pool)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveDatumByHash(t *testing.T) {
	raw := mustHex(t, datumHex)
	out := ledger.Output{Datum: ledger.HashDatum{Hash: ledger.Blake2b256(raw)}}
	pool := []ledger.DatumCandidate{
		ledger.NewDatumCandidate(mustHex(t, "182b")),
		ledger.NewDatumCandidate(raw),
	}

	got, err := ResolveDatum(out, pool)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, raw, got.Raw)
	assert.NotNil(t, got.Data)

	viaIndex, err := NewDatumPool(pool).Resolve(out)
	require.NoError(t, err)
	require.NotNil(t, viaIndex)
	assert.Equal(t, got.Raw, viaIndex.Raw)
}

func TestResolveDatumHashUsesOriginalBytes(t *testing.T) {
	// Same value, indefinite length encoding: different bytes, different hash.
	out := ledger.Output{Datum: ledger.HashDatum{Hash: ledger.Blake2b256(mustHex(t, datumHex))}}
	pool := []ledger.DatumCandidate{ledger.NewDatumCandidate(mustHex(t, "d8799f182aff"))}

	got, err := ResolveDatum(out, pool)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveDatumHashAbsent(t *testing.T) {
	out := ledger.Output{Datum: ledger.HashDatum{Hash: ledger.Blake2b256(mustHex(t, datumHex))}}

	got, err := ResolveDatum(out, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ResolveDatum(out, []ledger.DatumCandidate{ledger.NewDatumCandidate(mustHex(t, "182b"))})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = NewDatumPool(nil).Resolve(out)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveDatumMalformedCandidate(t *testing.T) {
	// A truncated array: hashes fine, does not decode.
	broken := []byte{0x9f, 0x01}
	out := ledger.Output{Datum: ledger.HashDatum{Hash: ledger.Blake2b256(broken)}}

	got, err := ResolveDatum(out, []ledger.DatumCandidate{ledger.NewDatumCandidate(broken)})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrMalformedDatumCandidate)

	_, err = NewDatumPool([]ledger.DatumCandidate{ledger.NewDatumCandidate(broken)}).Resolve(out)
	assert.ErrorIs(t, err, ErrMalformedDatumCandidate)
}

type fakeLookup struct {
	mu      sync.Mutex
	records []model.NativeAsset
	calls   [][]ledger.AssetPair
	err     error
}

func (f *fakeLookup) NativeAssetsByPairs(_ context.Context, pairs []ledger.AssetPair) ([]model.NativeAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pairs)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.NativeAsset
	for _, rec := range f.records {
		for _, p := range pairs {
			if rec.MatchesPair(p.PolicyID[:], p.Name) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func TestAssetsFromPairs(t *testing.T) {
	ab := pair(t, policyP1, "B")
	cd := pair(t, policyP2, "D")
	lookup := &fakeLookup{records: []model.NativeAsset{{ID: 1, PolicyID: ab.PolicyID[:], AssetName: ab.Name}}}

	got, err := AssetsFromPairs(context.Background(), lookup, []ledger.AssetPair{ab, cd})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].MatchesPair(ab.PolicyID[:], ab.Name))
	assert.Len(t, lookup.calls, 1)
}

func TestAssetsFromPairsDuplicates(t *testing.T) {
	ab := pair(t, policyP1, "B")
	lookup := &fakeLookup{records: []model.NativeAsset{{ID: 1, PolicyID: ab.PolicyID[:], AssetName: ab.Name}}}

	got, err := AssetsFromPairs(context.Background(), lookup, []ledger.AssetPair{ab, ab, ab})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.Len(t, lookup.calls, 1)
	assert.Len(t, lookup.calls[0], 1)
}

func TestAssetsFromPairsEmptySkipsLookup(t *testing.T) {
	lookup := &fakeLookup{records: []model.NativeAsset{{ID: 1}}}

	for _, pairs := range [][]ledger.AssetPair{nil, {}} {
		got, err := AssetsFromPairs(context.Background(), lookup, pairs)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Empty(t, lookup.calls)
}

func TestAssetsFromPairsStorageError(t *testing.T) {
	cause := errors.New("connection reset")
	lookup := &fakeLookup{err: cause}

	got, err := AssetsFromPairs(context.Background(), lookup, []ledger.AssetPair{pair(t, policyP1, "B")})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, cause, storageErr.Err)
	assert.Len(t, lookup.calls, 1)
}

func TestIdempotent(t *testing.T) {
	raw := mustHex(t, datumHex)
	out := ledger.Output{
		Address: mustHex(t, "61"+policyP1),
		Assets:  []ledger.Asset{ledger.BaseAsset{Quantity: 9}, native(t, policyP1, "N1", 1)},
		Datum:   ledger.HashDatum{Hash: ledger.Blake2b256(raw)},
	}
	pool := []ledger.DatumCandidate{ledger.NewDatumCandidate(raw)}
	lookup := &fakeLookup{records: []model.NativeAsset{{ID: 7, PolicyID: mustHex(t, policyP1), AssetName: []byte("N1")}}}

	cred1, _ := PaymentCredentialHash(out.AddressResult())
	amt1 := AssetAmount(out, ledger.BaseCurrency())
	datum1, err := ResolveDatum(out, pool)
	require.NoError(t, err)
	assets1, err := AssetsFromPairs(context.Background(), lookup, out.NativePairs())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		cred, _ := PaymentCredentialHash(out.AddressResult())
		assert.Equal(t, cred1, cred)
		assert.Equal(t, amt1, AssetAmount(out, ledger.BaseCurrency()))
		datum, err := ResolveDatum(out, pool)
		require.NoError(t, err)
		assert.Equal(t, datum1.Raw, datum.Raw)
		assets, err := AssetsFromPairs(context.Background(), lookup, out.NativePairs())
		require.NoError(t, err)
		assert.Equal(t, assets1, assets)
	}
}

func TestPureComponentsConcurrent(t *testing.T) {
	raw := mustHex(t, datumHex)
	out := ledger.Output{
		Address: mustHex(t, "61"+policyP1),
		Assets:  []ledger.Asset{ledger.BaseAsset{Quantity: 9}},
		Datum:   ledger.HashDatum{Hash: ledger.Blake2b256(raw)},
	}
	pool := []ledger.DatumCandidate{ledger.NewDatumCandidate(raw)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, ok := PaymentCredentialHash(out.AddressResult())
			assert.True(t, ok)
			assert.Equal(t, policyP1, cred)
			assert.Equal(t, uint64(9), AssetAmount(out, ledger.BaseCurrency()))
			datum, err := ResolveDatum(out, pool)
			assert.NoError(t, err)
			assert.NotNil(t, datum)
		}()
	}
	wg.Wait()
}

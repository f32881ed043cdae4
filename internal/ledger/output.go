package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

const (
	cborMajorBytes = 2
	cborMajorArray = 4
	cborMajorMap   = 5

	cborTagEncodedCbor = 24

	outputKeyAddress     = 0
	outputKeyValue       = 1
	outputKeyDatumOption = 2

	datumOptionHash   = 0
	datumOptionInline = 1
)

// ErrMalformedOutput is wrapped by every output decode failure.
var ErrMalformedOutput = errors.New("malformed output")

// Output is an era-normalized transaction output.
type Output struct {
	Era     Era
	Address []byte
	Assets  []Asset
	Datum   Datum
}

// AddressResult decodes the output address.
func (o Output) AddressResult() AddressResult {
	return DecodeAddress(o.Address)
}

// NativePairs returns the distinct native asset pairs held by the output.
func (o Output) NativePairs() []AssetPair {
	seen := make(map[string]struct{})
	pairs := make([]AssetPair, 0)
	for _, asset := range o.Assets {
		native, ok := asset.(NativeAsset)
		if !ok {
			continue
		}
		pair := native.Pair()
		if _, dup := seen[pair.Key()]; dup {
			continue
		}
		seen[pair.Key()] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs
}

// DecodeOutput decodes the CBOR of a transaction output produced in era.
// Legacy array outputs are accepted in every era; the map form requires
// Babbage or later.
func DecodeOutput(era Era, raw []byte) (Output, error) {
	out, err := decodeOutput(era, raw)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}

func decodeOutput(era Era, raw []byte) (Output, error) {
	if len(raw) == 0 {
		return Output{}, errors.New("empty output")
	}
	switch raw[0] >> 5 {
	case cborMajorArray:
		return decodeLegacyOutput(era, raw)
	case cborMajorMap:
		if !era.SupportsDatumOption() {
			return Output{}, fmt.Errorf("map output in %s era", era)
		}
		return decodeMapOutput(era, raw)
	default:
		return Output{}, fmt.Errorf("unexpected cbor major type %d", raw[0]>>5)
	}
}

func decodeLegacyOutput(era Era, raw []byte) (Output, error) {
	var items []cbor.RawMessage
	if err := cborDecMode.Unmarshal(raw, &items); err != nil {
		return Output{}, err
	}
	if len(items) < 2 || len(items) > 3 {
		return Output{}, fmt.Errorf("legacy output has %d fields", len(items))
	}

	out := Output{Era: era}
	var err error
	if out.Address, err = decodeOutputAddress(items[0]); err != nil {
		return Output{}, err
	}
	if out.Assets, err = decodeValue(items[1]); err != nil {
		return Output{}, err
	}
	if len(items) == 3 {
		if era < EraAlonzo {
			return Output{}, fmt.Errorf("datum hash in %s era", era)
		}
		hash, err := decodeHash32(items[2])
		if err != nil {
			return Output{}, fmt.Errorf("datum hash: %w", err)
		}
		out.Datum = HashDatum{Hash: hash}
	}
	return out, nil
}

func decodeMapOutput(era Era, raw []byte) (Output, error) {
	var fields map[uint64]cbor.RawMessage
	if err := cborDecMode.Unmarshal(raw, &fields); err != nil {
		return Output{}, err
	}
	addrRaw, ok := fields[outputKeyAddress]
	if !ok {
		return Output{}, errors.New("missing address")
	}
	valueRaw, ok := fields[outputKeyValue]
	if !ok {
		return Output{}, errors.New("missing value")
	}

	out := Output{Era: era}
	var err error
	if out.Address, err = decodeOutputAddress(addrRaw); err != nil {
		return Output{}, err
	}
	if out.Assets, err = decodeValue(valueRaw); err != nil {
		return Output{}, err
	}
	if optRaw, ok := fields[outputKeyDatumOption]; ok {
		if out.Datum, err = decodeDatumOption(optRaw); err != nil {
			return Output{}, err
		}
	}
	return out, nil
}

// decodeOutputAddress accepts a bytestring (Shelley onwards) or the inline
// CBOR array used by Byron outputs.
func decodeOutputAddress(raw cbor.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty address field")
	}
	switch raw[0] >> 5 {
	case cborMajorBytes:
		var addr []byte
		if err := cborDecMode.Unmarshal(raw, &addr); err != nil {
			return nil, fmt.Errorf("address: %w", err)
		}
		return addr, nil
	case cborMajorArray:
		return append([]byte(nil), raw...), nil
	default:
		return nil, fmt.Errorf("address: unexpected cbor major type %d", raw[0]>>5)
	}
}

type multiAssetValue struct {
	_      struct{} `cbor:",toarray"`
	Coin   uint64
	Assets map[cbor.ByteString]map[cbor.ByteString]uint64
}

func decodeValue(raw cbor.RawMessage) ([]Asset, error) {
	var coin uint64
	if err := cborDecMode.Unmarshal(raw, &coin); err == nil {
		return []Asset{BaseAsset{Quantity: coin}}, nil
	}
	var value multiAssetValue
	if err := cborDecMode.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}

	natives := make([]NativeAsset, 0)
	for policyRaw, names := range value.Assets {
		policy, err := NewHash28(policyRaw.Bytes())
		if err != nil {
			return nil, fmt.Errorf("policy id: %w", err)
		}
		for name, qty := range names {
			natives = append(natives, NativeAsset{PolicyID: policy, Name: name.Bytes(), Quantity: qty})
		}
	}
	sort.Slice(natives, func(i, j int) bool {
		if c := bytes.Compare(natives[i].PolicyID[:], natives[j].PolicyID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(natives[i].Name, natives[j].Name) < 0
	})

	assets := make([]Asset, 0, len(natives)+1)
	assets = append(assets, BaseAsset{Quantity: value.Coin})
	for _, native := range natives {
		assets = append(assets, native)
	}
	return assets, nil
}

func decodeDatumOption(raw cbor.RawMessage) (Datum, error) {
	var items []cbor.RawMessage
	if err := cborDecMode.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("datum option: %w", err)
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("datum option has %d fields", len(items))
	}
	var kind uint64
	if err := cborDecMode.Unmarshal(items[0], &kind); err != nil {
		return nil, fmt.Errorf("datum option type: %w", err)
	}
	switch kind {
	case datumOptionHash:
		hash, err := decodeHash32(items[1])
		if err != nil {
			return nil, fmt.Errorf("datum hash: %w", err)
		}
		return HashDatum{Hash: hash}, nil
	case datumOptionInline:
		var tag cbor.RawTag
		if err := cborDecMode.Unmarshal(items[1], &tag); err != nil {
			return nil, fmt.Errorf("inline datum: %w", err)
		}
		if tag.Number != cborTagEncodedCbor {
			return nil, fmt.Errorf("inline datum: unexpected tag %d", tag.Number)
		}
		var encoded []byte
		if err := cborDecMode.Unmarshal(tag.Content, &encoded); err != nil {
			return nil, fmt.Errorf("inline datum: %w", err)
		}
		value, err := DecodePlutusDatum(encoded)
		if err != nil {
			return nil, fmt.Errorf("inline datum: %w", err)
		}
		return InlineDatum{Value: value}, nil
	default:
		return nil, fmt.Errorf("unsupported datum option type: %d", kind)
	}
}

func decodeHash32(raw cbor.RawMessage) (Hash32, error) {
	var data []byte
	if err := cborDecMode.Unmarshal(raw, &data); err != nil {
		return Hash32{}, err
	}
	return NewHash32(data)
}

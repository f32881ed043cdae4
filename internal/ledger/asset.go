package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Asset is either a BaseAsset (lovelace) or a NativeAsset.
type Asset interface {
	Amount() uint64
	isAsset()
}

// BaseAsset is an amount of the chain's native currency.
type BaseAsset struct {
	Quantity uint64
}

// NativeAsset is an amount of a token minted under a policy.
type NativeAsset struct {
	PolicyID Hash28
	Name     []byte
	Quantity uint64
}

func (a BaseAsset) Amount() uint64   { return a.Quantity }
func (a NativeAsset) Amount() uint64 { return a.Quantity }
func (BaseAsset) isAsset()           {}
func (NativeAsset) isAsset()         {}

// Pair returns the registry key of the asset.
func (a NativeAsset) Pair() AssetPair {
	return AssetPair{PolicyID: a.PolicyID, Name: a.Name}
}

// AssetPair identifies a native asset by policy id and asset name.
type AssetPair struct {
	PolicyID Hash28
	Name     []byte
}

// Key returns a comparable form of the pair, suitable as a map key.
func (p AssetPair) Key() string {
	return string(p.PolicyID[:]) + string(p.Name)
}

func (p AssetPair) Equal(other AssetPair) bool {
	return p.PolicyID == other.PolicyID && bytes.Equal(p.Name, other.Name)
}

func (p AssetPair) String() string {
	return p.PolicyID.String() + "." + hex.EncodeToString(p.Name)
}

// Fingerprint returns the CIP-14 asset fingerprint.
func (p AssetPair) Fingerprint() string {
	digest := blake2b160(append(append([]byte{}, p.PolicyID[:]...), p.Name...))
	conv, err := bech32.ConvertBits(digest, 8, 5, true)
	if err != nil {
		panic(fmt.Sprintf("unexpected error converting fingerprint to base32: %s", err))
	}
	encoded, err := bech32.Encode("asset", conv)
	if err != nil {
		panic(fmt.Sprintf("unexpected error encoding fingerprint as bech32: %s", err))
	}
	return encoded
}

// ParseAssetPair parses "<policy hex>.<name hex>"; the name may be empty.
func ParseAssetPair(input string) (AssetPair, error) {
	policyHex, nameHex, _ := strings.Cut(strings.TrimSpace(input), ".")
	policy, err := ParseHash28(policyHex)
	if err != nil {
		return AssetPair{}, fmt.Errorf("policy id %q: %w", policyHex, err)
	}
	name, err := hex.DecodeString(nameHex)
	if err != nil {
		return AssetPair{}, fmt.Errorf("asset name %q: %w", nameHex, err)
	}
	return AssetPair{PolicyID: policy, Name: name}, nil
}

// AssetSelector picks which asset entries of an output are aggregated.
// The zero value selects the base currency.
type AssetSelector struct {
	pair *AssetPair
}

func BaseCurrency() AssetSelector {
	return AssetSelector{}
}

func NativeSelector(pair AssetPair) AssetSelector {
	return AssetSelector{pair: &pair}
}

// ParseAssetSelector accepts "lovelace" or "<policy hex>.<name hex>".
func ParseAssetSelector(input string) (AssetSelector, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "lovelace", "ada":
		return BaseCurrency(), nil
	}
	pair, err := ParseAssetPair(input)
	if err != nil {
		return AssetSelector{}, err
	}
	return NativeSelector(pair), nil
}

func (s AssetSelector) IsBase() bool {
	return s.pair == nil
}

// Pair returns the selected native asset; ok is false for the base currency.
func (s AssetSelector) Pair() (AssetPair, bool) {
	if s.pair == nil {
		return AssetPair{}, false
	}
	return *s.pair, true
}

// Matches reports whether asset is selected. Base entries only match the base
// currency selector and native entries only match an equal pair.
func (s AssetSelector) Matches(asset Asset) bool {
	switch a := asset.(type) {
	case BaseAsset:
		return s.pair == nil
	case NativeAsset:
		return s.pair != nil && s.pair.Equal(a.Pair())
	default:
		return false
	}
}

func (s AssetSelector) String() string {
	if s.pair == nil {
		return "lovelace"
	}
	return s.pair.String()
}

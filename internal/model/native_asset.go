package model

import (
	"bytes"
	"encoding/hex"
)

// NativeAsset is a row of the native asset registry, unique per
// (policy_id, asset_name).
type NativeAsset struct {
	ID               int64  `gorm:"primaryKey" json:"id"`
	PolicyID         []byte `gorm:"not null;uniqueIndex:idx_native_asset_pair,priority:1" json:"policy_id"`
	AssetName        []byte `gorm:"not null;uniqueIndex:idx_native_asset_pair,priority:2" json:"asset_name"`
	CIP14Fingerprint string `gorm:"column:cip14_fingerprint;not null;index" json:"cip14_fingerprint"`
	FirstSlot        int64  `gorm:"not null" json:"first_slot"`
}

func (NativeAsset) TableName() string {
	return "native_asset"
}

// MatchesPair reports whether the row is keyed by policyID and assetName.
func (a NativeAsset) MatchesPair(policyID, assetName []byte) bool {
	return bytes.Equal(a.PolicyID, policyID) && bytes.Equal(a.AssetName, assetName)
}

func (a NativeAsset) String() string {
	return hex.EncodeToString(a.PolicyID) + "." + hex.EncodeToString(a.AssetName)
}

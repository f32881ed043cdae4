package model

// NormalizedOutput is the canonical form of an output written to a sink.
type NormalizedOutput struct {
	Slot        uint64            `json:"slot"`
	TxHash      string            `json:"tx_hash"`
	OutputIndex uint32            `json:"output_index"`
	Era         string            `json:"era"`
	Address     string            `json:"address,omitempty"`
	PaymentCred string            `json:"payment_cred,omitempty"`
	Lovelace    uint64            `json:"lovelace"`
	Tracked     map[string]uint64 `json:"tracked,omitempty"`
	Assets      []OutputAsset     `json:"assets,omitempty"`
	DatumHash   string            `json:"datum_hash,omitempty"`
	Datum       string            `json:"datum,omitempty"`
	IngestedAt  string            `json:"ingested_at"`
}

// OutputAsset is a native asset entry. RegistryID is set once the pair has
// been resolved against the native asset registry.
type OutputAsset struct {
	PolicyID    string `json:"policy_id"`
	AssetName   string `json:"asset_name"`
	Fingerprint string `json:"fingerprint"`
	Quantity    uint64 `json:"quantity"`
	RegistryID  *int64 `json:"registry_id,omitempty"`
}

// Key matches NativeAsset.String for the same pair.
func (a OutputAsset) Key() string {
	return a.PolicyID + "." + a.AssetName
}

package model

import (
	"encoding/json"
	"fmt"
)

// OutputRecord is one transaction output as read from the input JSONL.
// All CBOR fields are hex encoded. Datums lists the witness datums of the
// producing transaction one by one; WitnessDatums carries the same as the
// witness set plutus data list (plain array or tag 258 set).
type OutputRecord struct {
	Slot          uint64   `json:"slot"`
	TxHash        string   `json:"tx_hash"`
	OutputIndex   uint32   `json:"output_index"`
	Era           string   `json:"era"`
	OutputCBOR    string   `json:"output_cbor"`
	Datums        []string `json:"datums,omitempty"`
	WitnessDatums string   `json:"witness_datums,omitempty"`
}

// ID identifies the output as tx_hash#index.
func (r OutputRecord) ID() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.OutputIndex)
}

// UnmarshalJSON decodes an OutputRecord from JSON.
func (r *OutputRecord) UnmarshalJSON(data []byte) error {
	type Alias OutputRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.TxHash == "" {
		return fmt.Errorf("output record: tx_hash is required")
	}
	if a.OutputCBOR == "" {
		return fmt.Errorf("output record %s#%d: output_cbor is required", a.TxHash, a.OutputIndex)
	}
	*r = OutputRecord(a)
	return nil
}

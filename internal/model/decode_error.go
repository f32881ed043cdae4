package model

// DecodeError records an output that could not be normalized.
type DecodeError struct {
	Slot        uint64 `json:"slot"`
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	Era         string `json:"era"`
	Error       string `json:"error"`
}

func DecodeErrorFromRecord(record OutputRecord, err error) DecodeError {
	return DecodeError{
		Slot:        record.Slot,
		TxHash:      record.TxHash,
		OutputIndex: record.OutputIndex,
		Era:         record.Era,
		Error:       err.Error(),
	}
}

package pipeline

import (
	"encoding/hex"
	"fmt"
	"time"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/metrics"
	"cardanoScope/internal/model"
	"cardanoScope/internal/normalize"
)

// normalized is the per-record result of the worker pool.
type normalized struct {
	output model.NormalizedOutput
	pairs  []ledger.AssetPair
	datum  string
	err    error
}

// normalizeRecord turns one input record into its canonical form. Decode
// failures are reported through normalized.err; only a malformed datum
// candidate is returned as an error.
func normalizeRecord(record model.OutputRecord, selectors []ledger.AssetSelector, ingestedAt time.Time) (normalized, error) {
	era, err := ledger.ParseEra(record.Era)
	if err != nil {
		return normalized{err: err}, nil
	}
	raw, err := hex.DecodeString(record.OutputCBOR)
	if err != nil {
		return normalized{err: fmt.Errorf("output cbor: %w", err)}, nil
	}
	out, err := ledger.DecodeOutput(era, raw)
	if err != nil {
		return normalized{err: err}, nil
	}
	candidates, err := datumCandidates(record)
	if err != nil {
		return normalized{err: err}, nil
	}

	result := model.NormalizedOutput{
		Slot:        record.Slot,
		TxHash:      record.TxHash,
		OutputIndex: record.OutputIndex,
		Era:         era.String(),
		Lovelace:    normalize.AssetAmount(out, ledger.BaseCurrency()),
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
	if text, err := ledger.EncodeAddress(out.Address); err == nil {
		result.Address = text
	}
	if cred, ok := normalize.PaymentCredentialHash(out.AddressResult()); ok {
		result.PaymentCred = cred
	}
	if len(selectors) > 0 {
		result.Tracked = make(map[string]uint64, len(selectors))
		for _, sel := range selectors {
			result.Tracked[sel.String()] = normalize.AssetAmount(out, sel)
		}
	}
	for _, asset := range out.Assets {
		native, ok := asset.(ledger.NativeAsset)
		if !ok {
			continue
		}
		pair := native.Pair()
		result.Assets = append(result.Assets, model.OutputAsset{
			PolicyID:    native.PolicyID.String(),
			AssetName:   hex.EncodeToString(native.Name),
			Fingerprint: pair.Fingerprint(),
			Quantity:    native.Quantity,
		})
	}

	outcome, err := resolveDatum(&result, out, normalize.NewDatumPool(candidates))
	if err != nil {
		return normalized{}, fmt.Errorf("output %s: %w", record.ID(), err)
	}

	return normalized{output: result, pairs: out.NativePairs(), datum: outcome}, nil
}

func resolveDatum(result *model.NormalizedOutput, out ledger.Output, pool *normalize.DatumPool) (string, error) {
	switch datum := out.Datum.(type) {
	case nil:
		return metrics.DatumNone, nil
	case ledger.InlineDatum:
		result.DatumHash = datum.Value.Hash().String()
		result.Datum = hex.EncodeToString(datum.Value.Raw)
		return metrics.DatumInline, nil
	case ledger.HashDatum:
		result.DatumHash = datum.Hash.String()
		value, err := pool.Resolve(out)
		if err != nil {
			return metrics.DatumInvalid, err
		}
		if value == nil {
			return metrics.DatumMissing, nil
		}
		result.Datum = hex.EncodeToString(value.Raw)
		return metrics.DatumResolved, nil
	default:
		return "", fmt.Errorf("unsupported datum type %T", out.Datum)
	}
}

func datumCandidates(record model.OutputRecord) ([]ledger.DatumCandidate, error) {
	candidates := make([]ledger.DatumCandidate, 0, len(record.Datums))
	for i, item := range record.Datums {
		raw, err := hex.DecodeString(item)
		if err != nil {
			return nil, fmt.Errorf("witness datum %d: %w", i, err)
		}
		candidates = append(candidates, ledger.NewDatumCandidate(raw))
	}
	if record.WitnessDatums != "" {
		raw, err := hex.DecodeString(record.WitnessDatums)
		if err != nil {
			return nil, fmt.Errorf("witness datums: %w", err)
		}
		list, err := ledger.DecodeDatumCandidates(raw)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, list...)
	}
	return candidates, nil
}

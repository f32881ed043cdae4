package normalize

import (
	"context"
	"errors"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
)

// ErrStorage is the single error kind reported for registry failures.
var ErrStorage = errors.New("asset registry storage error")

// StorageError wraps the failure returned by an AssetLookup.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return ErrStorage.Error() + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// AssetLookup resolves native asset registry rows. Implementations are bound
// to a transaction owned by the caller and issue one read per call; they are
// not safe for concurrent use.
type AssetLookup interface {
	NativeAssetsByPairs(ctx context.Context, pairs []ledger.AssetPair) ([]model.NativeAsset, error)
}

// AssetsFromPairs returns the registry rows matching any of pairs. Duplicate
// pairs are collapsed and unknown pairs yield nothing. An empty input returns
// an empty result without touching the registry.
func AssetsFromPairs(ctx context.Context, lookup AssetLookup, pairs []ledger.AssetPair) ([]model.NativeAsset, error) {
	distinct := DistinctPairs(pairs)
	if len(distinct) == 0 {
		return []model.NativeAsset{}, nil
	}
	assets, err := lookup.NativeAssetsByPairs(ctx, distinct)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	if assets == nil {
		assets = []model.NativeAsset{}
	}
	return assets, nil
}

// DistinctPairs drops repeated pairs, keeping first occurrences in order.
func DistinctPairs(pairs []ledger.AssetPair) []ledger.AssetPair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]ledger.AssetPair, 0, len(pairs))
	for _, pair := range pairs {
		key := pair.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pair)
	}
	return out
}

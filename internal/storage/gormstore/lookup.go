package gormstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
)

// TxLookup resolves registry rows inside a transaction owned by the caller.
type TxLookup struct {
	tx *gorm.DB
}

func NewTxLookup(tx *gorm.DB) *TxLookup {
	return &TxLookup{tx: tx}
}

// NativeAssetsByPairs selects rows matching any pair with a single query.
// The predicate is one equality conjunction per pair joined by OR.
func (l *TxLookup) NativeAssetsByPairs(ctx context.Context, pairs []ledger.AssetPair) ([]model.NativeAsset, error) {
	if len(pairs) == 0 {
		return []model.NativeAsset{}, nil
	}
	var assets []model.NativeAsset
	err := l.tx.WithContext(ctx).
		Where(pairsCondition(pairs)).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func pairsCondition(pairs []ledger.AssetPair) clause.Expression {
	conds := make([]clause.Expression, 0, len(pairs))
	for _, pair := range pairs {
		conds = append(conds, clause.And(
			clause.Eq{Column: clause.Column{Name: "policy_id"}, Value: pair.PolicyID.Bytes()},
			clause.Eq{Column: clause.Column{Name: "asset_name"}, Value: assetName(pair)},
		))
	}
	return clause.Or(conds...)
}

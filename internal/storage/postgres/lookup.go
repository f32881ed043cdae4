package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
)

// Pairs are passed as two parallel bytea arrays, so the statement text is the
// same for every batch size.
const nativeAssetsByPairsSQL = `
	SELECT id, policy_id, asset_name, cip14_fingerprint, first_slot
	FROM native_asset
	WHERE (policy_id, asset_name) IN (
		SELECT p.policy_id, p.asset_name
		FROM unnest($1::bytea[], $2::bytea[]) AS p(policy_id, asset_name)
	)
`

// TxLookup resolves registry rows inside a transaction owned by the caller.
type TxLookup struct {
	tx pgx.Tx
}

func NewTxLookup(tx pgx.Tx) *TxLookup {
	return &TxLookup{tx: tx}
}

// NativeAssetsByPairs issues a single query. It never begins, commits or
// rolls back the transaction.
func (l *TxLookup) NativeAssetsByPairs(ctx context.Context, pairs []ledger.AssetPair) ([]model.NativeAsset, error) {
	if len(pairs) == 0 {
		return []model.NativeAsset{}, nil
	}
	policies := make([][]byte, 0, len(pairs))
	names := make([][]byte, 0, len(pairs))
	for _, pair := range pairs {
		policies = append(policies, pair.PolicyID.Bytes())
		name := pair.Name
		if name == nil {
			name = []byte{}
		}
		names = append(names, name)
	}

	rows, err := l.tx.Query(ctx, nativeAssetsByPairsSQL, policies, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]model.NativeAsset, 0, len(pairs))
	for rows.Next() {
		var asset model.NativeAsset
		if err := rows.Scan(&asset.ID, &asset.PolicyID, &asset.AssetName, &asset.CIP14Fingerprint, &asset.FirstSlot); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

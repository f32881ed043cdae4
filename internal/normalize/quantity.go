package normalize

import (
	"math"
	"math/bits"

	"cardanoScope/internal/ledger"
)

// AssetAmount sums the quantities of the output's entries matching sel.
// The total saturates at math.MaxUint64 instead of wrapping.
func AssetAmount(out ledger.Output, sel ledger.AssetSelector) uint64 {
	var total uint64
	for _, asset := range out.Assets {
		if !sel.Matches(asset) {
			continue
		}
		total = saturatingAdd(total, asset.Amount())
	}
	return total
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

package normalize

import (
	"errors"
	"fmt"

	"cardanoScope/internal/ledger"
)

// ErrMalformedDatumCandidate reports a pool entry whose hash matched but whose
// bytes do not decode. Pools are built from already decoded witnesses, so this
// is an internal consistency failure and must not be treated as "absent".
var ErrMalformedDatumCandidate = errors.New("malformed datum candidate")

// ResolveDatum returns the datum attached to out. Inline datums are returned
// as is; hash references are looked up in pool. A nil result with a nil error
// means the output has no datum or the referenced datum is not available.
func ResolveDatum(out ledger.Output, pool []ledger.DatumCandidate) (*ledger.PlutusDatum, error) {
	switch datum := out.Datum.(type) {
	case nil:
		return nil, nil
	case ledger.InlineDatum:
		value := datum.Value
		return &value, nil
	case ledger.HashDatum:
		for _, candidate := range pool {
			if candidate.Hash() != datum.Hash {
				continue
			}
			return decodeCandidate(candidate, datum.Hash)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported datum type %T", out.Datum)
	}
}

// DatumPool indexes candidates by hash. Resolve behaves like ResolveDatum over
// the candidates the pool was built from.
type DatumPool struct {
	byHash map[ledger.Hash32]ledger.DatumCandidate
}

func NewDatumPool(candidates []ledger.DatumCandidate) *DatumPool {
	pool := &DatumPool{byHash: make(map[ledger.Hash32]ledger.DatumCandidate, len(candidates))}
	for _, candidate := range candidates {
		hash := candidate.Hash()
		if _, ok := pool.byHash[hash]; ok {
			continue
		}
		pool.byHash[hash] = candidate
	}
	return pool
}

func (p *DatumPool) Resolve(out ledger.Output) (*ledger.PlutusDatum, error) {
	switch datum := out.Datum.(type) {
	case ledger.HashDatum:
		if p == nil {
			return nil, nil
		}
		candidate, ok := p.byHash[datum.Hash]
		if !ok {
			return nil, nil
		}
		return decodeCandidate(candidate, datum.Hash)
	default:
		return ResolveDatum(out, nil)
	}
}

func decodeCandidate(candidate ledger.DatumCandidate, hash ledger.Hash32) (*ledger.PlutusDatum, error) {
	value, err := candidate.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: datum %s: %v", ErrMalformedDatumCandidate, hash, err)
	}
	return &value, nil
}

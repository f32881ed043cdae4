package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/plutigo/data"
	"github.com/fxamacker/cbor/v2"
)

const cborTagSet = 258

// cborDecMode allows plutus data nested as deep as plutigo accepts.
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{MaxNestedLevels: 256}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Datum is either an InlineDatum or a HashDatum. A nil Datum means the
// output carries none.
type Datum interface {
	isDatum()
}

// InlineDatum is a datum embedded in the output itself.
type InlineDatum struct {
	Value PlutusDatum
}

// HashDatum references a datum by the blake2b-256 hash of its encoding.
type HashDatum struct {
	Hash Hash32
}

func (InlineDatum) isDatum() {}
func (HashDatum) isDatum()   {}

// PlutusDatum is a decoded datum together with the bytes it was decoded from.
type PlutusDatum struct {
	Raw  []byte
	Data data.PlutusData
}

// DecodePlutusDatum decodes raw as plutus data, keeping a copy of raw.
func DecodePlutusDatum(raw []byte) (PlutusDatum, error) {
	value, err := data.Decode(raw)
	if err != nil {
		return PlutusDatum{}, err
	}
	return PlutusDatum{Raw: append([]byte(nil), raw...), Data: value}, nil
}

func (d PlutusDatum) Hash() Hash32 {
	return Blake2b256(d.Raw)
}

func (d PlutusDatum) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(d.Raw))
}

// DatumCandidate is a witness datum preserved exactly as it was encoded.
type DatumCandidate struct {
	raw cbor.RawMessage
}

func NewDatumCandidate(raw []byte) DatumCandidate {
	return DatumCandidate{raw: append(cbor.RawMessage(nil), raw...)}
}

func (c *DatumCandidate) UnmarshalCBOR(raw []byte) error {
	c.raw = append(cbor.RawMessage(nil), raw...)
	return nil
}

func (c DatumCandidate) Raw() []byte {
	return c.raw
}

// Hash is computed over the original bytes. Re-encoding the decoded value is
// not guaranteed to reproduce them.
func (c DatumCandidate) Hash() Hash32 {
	return Blake2b256(c.raw)
}

func (c DatumCandidate) Decode() (PlutusDatum, error) {
	return DecodePlutusDatum(c.raw)
}

// DecodeDatumCandidates decodes a witness set plutus data list, either a plain
// array or a tag 258 set.
func DecodeDatumCandidates(raw []byte) ([]DatumCandidate, error) {
	var list []DatumCandidate
	if err := cborDecMode.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var tagged cbor.RawTag
	if err := cborDecMode.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("plutus data list: %w", err)
	}
	if tagged.Number != cborTagSet {
		return nil, fmt.Errorf("plutus data list: unexpected tag %d", tagged.Number)
	}
	if err := cborDecMode.Unmarshal(tagged.Content, &list); err != nil {
		return nil, fmt.Errorf("plutus data set: %w", err)
	}
	return list, nil
}

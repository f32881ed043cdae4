package ledger

import (
	"fmt"
	"strings"
)

type Era uint8

const (
	EraByron Era = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

var eraNames = map[Era]string{
	EraByron:   "byron",
	EraShelley: "shelley",
	EraAllegra: "allegra",
	EraMary:    "mary",
	EraAlonzo:  "alonzo",
	EraBabbage: "babbage",
	EraConway:  "conway",
}

func (e Era) String() string {
	if name, ok := eraNames[e]; ok {
		return name
	}
	return fmt.Sprintf("era(%d)", uint8(e))
}

func ParseEra(input string) (Era, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	for era, eraName := range eraNames {
		if eraName == name {
			return era, nil
		}
	}
	return 0, fmt.Errorf("unknown era: %q", input)
}

// SupportsDatumOption reports whether outputs of the era may use the
// post-Alonzo map format with inline datums.
func (e Era) SupportsDatumOption() bool {
	return e >= EraBabbage
}

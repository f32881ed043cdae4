package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/normalize"
)

type addressInfo struct {
	Input       string                    `json:"input"`
	Kind        string                    `json:"kind,omitempty"`
	Network     *uint8                    `json:"network,omitempty"`
	PaymentCred string                    `json:"payment_cred,omitempty"`
	Payment     string                    `json:"payment,omitempty"`
	Delegation  string                    `json:"delegation,omitempty"`
	StakeCred   string                    `json:"stake_cred,omitempty"`
	Pointer     *ledger.PointerDelegation `json:"pointer,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func runAddress(cmd *cobra.Command, args []string) error {
	infos := make([]addressInfo, 0, len(args))
	for _, arg := range args {
		infos = append(infos, describeAddress(arg))
	}
	return printJSONLines(cmd, infos)
}

// describeAddress accepts raw hex as well as the text encodings.
func describeAddress(input string) addressInfo {
	input = strings.TrimSpace(input)
	info := addressInfo{Input: input}

	var res ledger.AddressResult
	if raw, err := hex.DecodeString(input); err == nil && len(raw) > 0 {
		res = ledger.DecodeAddress(raw)
	} else {
		res = ledger.ParseAddress(input)
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
		return info
	}
	if cred, ok := normalize.PaymentCredentialHash(res); ok {
		info.PaymentCred = cred
	}

	switch addr := res.Address.(type) {
	case ledger.ShelleyAddress:
		info.Kind = "shelley"
		info.Network = &addr.Network
		info.Payment = credentialKind(addr.Payment)
		switch d := addr.Delegation.(type) {
		case ledger.StakeCredential:
			info.Delegation = "stake_" + credentialKind(d.Credential)
			info.StakeCred = d.Credential.Hash().String()
		case ledger.PointerDelegation:
			info.Delegation = "pointer"
			info.Pointer = &d
		case ledger.NoDelegation:
			info.Delegation = "none"
		}
	case ledger.StakeAddress:
		info.Kind = "stake"
		info.Network = &addr.Network
		info.StakeCred = addr.Credential.Hash().String()
	case ledger.ByronAddress:
		info.Kind = "byron"
	default:
		info.Error = fmt.Sprintf("unsupported address type %T", res.Address)
	}
	return info
}

func credentialKind(cred ledger.Credential) string {
	switch cred.(type) {
	case ledger.ScriptHashCredential:
		return "script"
	default:
		return "key"
	}
}

func printJSONLines[T any](cmd *cobra.Command, values []T) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, value := range values {
		if err := enc.Encode(value); err != nil {
			return err
		}
	}
	return nil
}

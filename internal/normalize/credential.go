package normalize

import "cardanoScope/internal/ledger"

// PaymentCredentialHash returns the hex payment credential hash of a decoded
// Shelley family address. Decode failures and all other address kinds have no
// payment credential at this layer and report false.
func PaymentCredentialHash(res ledger.AddressResult) (string, bool) {
	if res.Err != nil {
		return "", false
	}
	switch addr := res.Address.(type) {
	case ledger.ShelleyAddress:
		if addr.Payment == nil {
			return "", false
		}
		return addr.Payment.Hash().String(), true
	case ledger.ByronAddress, ledger.StakeAddress:
		return "", false
	default:
		return "", false
	}
}

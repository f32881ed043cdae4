package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"
)

const (
	addressTypeMask    = 0xF0
	addressNetworkMask = 0x0F

	addressTypeKeyKey        = 0b0000
	addressTypeScriptKey     = 0b0001
	addressTypeKeyScript     = 0b0010
	addressTypeScriptScript  = 0b0011
	addressTypeKeyPointer    = 0b0100
	addressTypeScriptPointer = 0b0101
	addressTypeKeyNone       = 0b0110
	addressTypeScriptNone    = 0b0111
	addressTypeByron         = 0b1000
	addressTypeNoneKey       = 0b1110
	addressTypeNoneScript    = 0b1111

	NetworkTestnet = 0
	NetworkMainnet = 1
)

// ErrMalformedAddress is wrapped by every address decode failure.
var ErrMalformedAddress = errors.New("malformed address")

// Address is one of ShelleyAddress, ByronAddress or StakeAddress.
type Address interface {
	isAddress()
}

// Credential is either a KeyHashCredential or a ScriptHashCredential.
type Credential interface {
	Hash() Hash28
	isCredential()
}

type KeyHashCredential struct {
	KeyHash Hash28
}

func (c KeyHashCredential) Hash() Hash28 { return c.KeyHash }
func (KeyHashCredential) isCredential()  {}

type ScriptHashCredential struct {
	ScriptHash Hash28
}

func (c ScriptHashCredential) Hash() Hash28 { return c.ScriptHash }
func (ScriptHashCredential) isCredential()  {}

// Delegation is the staking part of a Shelley address.
type Delegation interface {
	isDelegation()
}

type StakeCredential struct {
	Credential Credential
}

type PointerDelegation struct {
	Slot      uint64
	TxIndex   uint64
	CertIndex uint64
}

type NoDelegation struct{}

func (StakeCredential) isDelegation()   {}
func (PointerDelegation) isDelegation() {}
func (NoDelegation) isDelegation()      {}

// ShelleyAddress covers base, pointer and enterprise addresses.
type ShelleyAddress struct {
	Network    uint8
	Payment    Credential
	Delegation Delegation
}

// ByronAddress is a bootstrap era address.
type ByronAddress struct {
	Root Hash28
	Type uint64
	Raw  []byte
}

// StakeAddress is a reward account address.
type StakeAddress struct {
	Network    uint8
	Credential Credential
}

func (ShelleyAddress) isAddress() {}
func (ByronAddress) isAddress()   {}
func (StakeAddress) isAddress()   {}

// AddressResult carries the outcome of decoding an address. Exactly one of
// Address and Err is set.
type AddressResult struct {
	Address Address
	Err     error
}

// DecodeAddress decodes raw address bytes as they appear in an output.
func DecodeAddress(raw []byte) AddressResult {
	addr, err := decodeAddress(raw)
	if err != nil {
		return AddressResult{Err: fmt.Errorf("%w: %v", ErrMalformedAddress, err)}
	}
	return AddressResult{Address: addr}
}

// ParseAddress decodes a bech32 (Shelley and later) or base58 (Byron) address string.
func ParseAddress(input string) AddressResult {
	raw, err := addressBytesFromString(input)
	if err != nil {
		return AddressResult{Err: fmt.Errorf("%w: %v", ErrMalformedAddress, err)}
	}
	return DecodeAddress(raw)
}

func addressBytesFromString(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty address")
	}
	if strings.ToLower(input) != input {
		raw := base58.Decode(input)
		if len(raw) == 0 {
			return nil, errors.New("invalid base58 address")
		}
		return raw, nil
	}
	_, data, err := bech32.DecodeNoLimit(input)
	if err != nil {
		return nil, err
	}
	return bech32.ConvertBits(data, 5, 8, false)
}

// EncodeAddress renders raw address bytes in their conventional text form.
func EncodeAddress(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty address", ErrMalformedAddress)
	}
	header := raw[0]
	addrType := (header & addressTypeMask) >> 4
	if addrType == addressTypeByron {
		return base58.Encode(raw), nil
	}
	mainnet := header&addressNetworkMask == NetworkMainnet
	var hrp string
	switch addrType {
	case addressTypeNoneKey, addressTypeNoneScript:
		hrp = "stake"
	default:
		hrp = "addr"
	}
	if !mainnet {
		hrp += "_test"
	}
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, conv)
}

func decodeAddress(data []byte) (Address, error) {
	if len(data) == 0 {
		return nil, errors.New("empty address")
	}
	header := data[0]
	addrType := (header & addressTypeMask) >> 4
	network := header & addressNetworkMask

	switch addrType {
	case addressTypeByron:
		return decodeByronAddress(data)
	case addressTypeNoneKey, addressTypeNoneScript:
		cred, rest, err := readCredential(data[1:], addrType == addressTypeNoneScript)
		if err != nil {
			return nil, fmt.Errorf("stake credential: %w", err)
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("unexpected %d trailing bytes", len(rest))
		}
		return StakeAddress{Network: network, Credential: cred}, nil
	case addressTypeKeyKey, addressTypeScriptKey, addressTypeKeyScript, addressTypeScriptScript,
		addressTypeKeyPointer, addressTypeScriptPointer, addressTypeKeyNone, addressTypeScriptNone:
	default:
		return nil, fmt.Errorf("unknown address type %d", addrType)
	}

	paymentScript := addrType&0b0001 != 0
	payment, rest, err := readCredential(data[1:], paymentScript)
	if err != nil {
		return nil, fmt.Errorf("payment credential: %w", err)
	}

	var delegation Delegation
	switch addrType {
	case addressTypeKeyKey, addressTypeScriptKey, addressTypeKeyScript, addressTypeScriptScript:
		stake, _, err := readCredential(rest, addrType&0b0010 != 0)
		if err != nil {
			return nil, fmt.Errorf("stake credential: %w", err)
		}
		// Trailing bytes after the stake hash exist on chain and are ignored.
		delegation = StakeCredential{Credential: stake}
	case addressTypeKeyPointer, addressTypeScriptPointer:
		ptr, err := readPointer(rest)
		if err != nil {
			return nil, fmt.Errorf("pointer: %w", err)
		}
		delegation = ptr
	default:
		delegation = NoDelegation{}
	}

	return ShelleyAddress{Network: network, Payment: payment, Delegation: delegation}, nil
}

func readCredential(data []byte, script bool) (Credential, []byte, error) {
	if len(data) < Hash28Size {
		return nil, nil, fmt.Errorf("hash too short: %d bytes", len(data))
	}
	hash := Hash28(data[:Hash28Size])
	if script {
		return ScriptHashCredential{ScriptHash: hash}, data[Hash28Size:], nil
	}
	return KeyHashCredential{KeyHash: hash}, data[Hash28Size:], nil
}

func readPointer(data []byte) (PointerDelegation, error) {
	buf := bytes.NewReader(data)
	readVarUint := func() (uint64, error) {
		var ret uint64
		for {
			b, err := buf.ReadByte()
			if err != nil {
				return 0, err
			}
			if ret > (1<<57)-1 {
				return 0, errors.New("pointer value overflows uint64")
			}
			ret = (ret << 7) | uint64(b&0x7F)
			if b&0x80 == 0 {
				return ret, nil
			}
		}
	}
	var ptr PointerDelegation
	var err error
	if ptr.Slot, err = readVarUint(); err != nil {
		return ptr, err
	}
	if ptr.TxIndex, err = readVarUint(); err != nil {
		return ptr, err
	}
	if ptr.CertIndex, err = readVarUint(); err != nil {
		return ptr, err
	}
	return ptr, nil
}

type byronAddressEnvelope struct {
	_        struct{} `cbor:",toarray"`
	Payload  cbor.Tag
	Checksum uint32
}

type byronAddressPayload struct {
	_          struct{} `cbor:",toarray"`
	Root       []byte
	Attributes cbor.RawMessage
	Type       uint64
}

func decodeByronAddress(data []byte) (Address, error) {
	var envelope byronAddressEnvelope
	if err := cborDecMode.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("byron envelope: %w", err)
	}
	payload, ok := envelope.Payload.Content.([]byte)
	if !ok || envelope.Payload.Number != 24 {
		return nil, errors.New("byron payload is not an embedded cbor bytestring")
	}
	if crc32.ChecksumIEEE(payload) != envelope.Checksum {
		return nil, errors.New("byron checksum mismatch")
	}
	var inner byronAddressPayload
	if err := cborDecMode.Unmarshal(payload, &inner); err != nil {
		return nil, fmt.Errorf("byron payload: %w", err)
	}
	root, err := NewHash28(inner.Root)
	if err != nil {
		return nil, fmt.Errorf("byron root: %w", err)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return ByronAddress{Root: root, Type: inner.Type, Raw: raw}, nil
}

package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	Hash28Size = 28
	Hash32Size = 32
)

// Hash28 is a blake2b-224 digest: key hashes, script hashes and policy ids.
type Hash28 [Hash28Size]byte

// Hash32 is a blake2b-256 digest: datum hashes and transaction ids.
type Hash32 [Hash32Size]byte

func NewHash28(data []byte) (Hash28, error) {
	var h Hash28
	if len(data) != Hash28Size {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(data), Hash28Size)
	}
	copy(h[:], data)
	return h, nil
}

func NewHash32(data []byte) (Hash32, error) {
	var h Hash32
	if len(data) != Hash32Size {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(data), Hash32Size)
	}
	copy(h[:], data)
	return h, nil
}

// ParseHash28 decodes a hex encoded 28 byte hash.
func ParseHash28(input string) (Hash28, error) {
	data, err := hex.DecodeString(input)
	if err != nil {
		return Hash28{}, fmt.Errorf("invalid hex: %w", err)
	}
	return NewHash28(data)
}

func (h Hash28) String() string { return hex.EncodeToString(h[:]) }
func (h Hash28) Bytes() []byte  { return h[:] }

func (h Hash28) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h Hash32) String() string { return hex.EncodeToString(h[:]) }
func (h Hash32) Bytes() []byte  { return h[:] }

func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Blake2b256 hashes data exactly as given.
func Blake2b256(data []byte) Hash32 {
	return Hash32(blake2b.Sum256(data))
}

func blake2b160(data []byte) []byte {
	h, err := blake2b.New(20, nil)
	if err != nil {
		panic(fmt.Sprintf("unexpected error creating blake2b-160 hash: %s", err))
	}
	h.Write(data)
	return h.Sum(nil)
}

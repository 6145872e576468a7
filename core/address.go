// Package core defines the identifiers and fault taxonomy shared by the host
// runtime and the programs it executes.
package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size in bytes of an account or contract address.
const AddressLength = 32

// Address names an account, a contract or a beneficiary.
type Address [AddressLength]byte

// Hash is a 32-byte digest.
type Hash [32]byte

var ZeroAddress = Address{}

func (addr Address) String() string {
	return hex.EncodeToString(addr[:])
}

// IsZero reports whether addr is the reserved unset address.
func (addr Address) IsZero() bool {
	return addr == ZeroAddress
}

// Bytes returns a copy of the address bytes.
func (addr Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, addr[:])
	return out
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseAddress decodes a hex address with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return addr, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidAddress, AddressLength*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	copy(addr[:], b)
	return addr, nil
}

// AddressFromBytes copies b into an Address. b must be exactly AddressLength long.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// HashBytes returns the SHA-256 digest of data.
func HashBytes(data []byte) Hash {
	return sha256.Sum256(data)
}

// ContractAddress derives a deterministic contract address from the creator,
// an identifier of the deployed code and the creator's deploy nonce.
func ContractAddress(creator Address, code []byte, nonce uint64) Address {
	h := sha256.New()
	h.Write(creator[:])
	h.Write(code)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

func (addr *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil || len(b) != len(h) {
		return fmt.Errorf("invalid hash %q", text)
	}
	copy(h[:], b)
	return nil
}

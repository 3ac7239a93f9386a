package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte length of a derived account address.
const AddressLength = 20

// Address identifies an account. It is derived from the account's public
// key and never changes for the lifetime of the key.
type Address [AddressLength]byte

// ParseAddress decodes a hex address string, with or without the 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length: %d", len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// BytesToAddress copies b into an Address. Panics if b is not 20 bytes.
func BytesToAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic(fmt.Sprintf("models: address must be %d bytes, got %d", AddressLength, len(b)))
	}
	var a Address
	copy(a[:], b)
	return a
}

func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// String returns the bare lowercase hex form used in key-file names and the
// on-disk key-file address field.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Hex returns the 0x-prefixed, EIP-55 checksummed form for display.
func (a Address) Hex() string {
	lower := hex.EncodeToString(a[:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i := range out {
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 && out[i] >= 'a' && out[i] <= 'f' {
			out[i] -= 32
		}
	}
	return "0x" + string(out)
}

// MarshalJSON encodes the address as bare lowercase hex for key-file interop.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Account is an identifier-only handle to a stored key. It never carries
// private key material or a passphrase.
//
// Path is empty for accounts managed inside a keystore directory. A
// non-empty Path marks a custom-path account backed by an external key
// file; those are only usable through the passphrase-based signing path
// and are rejected by every keystore lifecycle operation.
type Account struct {
	Address Address `json:"address"`
	Path    string  `json:"path,omitempty"`
}

// Managed reports whether the account lives in a managed keystore
// directory rather than at a caller-supplied path.
func (a Account) Managed() bool { return a.Path == "" }

// Equal compares accounts by address only.
func (a Account) Equal(other Account) bool { return a.Address == other.Address }

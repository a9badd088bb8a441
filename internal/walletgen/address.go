package walletgen

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Bech32HRP is the human-readable part of addresses on the target network.
const Bech32HRP = "atoi"

// AddressLength is the size of a raw account address.
const AddressLength = 20

// ErrInvalidAddress is returned when a string is not a bech32 account address.
var ErrInvalidAddress = errors.New("invalid bech32 address")

// EncodeAddress encodes a 20-byte account address as bech32.
func EncodeAddress(hrp string, addr []byte) (string, error) {
	if len(addr) != AddressLength {
		return "", fmt.Errorf("%w: address must be %d bytes", ErrInvalidAddress, AddressLength)
	}

	conv, err := bech32.ConvertBits(addr, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}

	return bech32.Encode(hrp, conv)
}

// DecodeAddress decodes a bech32 account address and returns its hrp and raw bytes.
func DecodeAddress(s string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeToBase256(s)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if len(data) != AddressLength {
		return "", nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddress, len(data), AddressLength)
	}

	return hrp, data, nil
}

// ParseAddress decodes s and checks it belongs to the network identified by hrp.
func ParseAddress(s, hrp string) ([]byte, error) {
	got, data, err := DecodeAddress(s)
	if err != nil {
		return nil, err
	}

	if got != hrp {
		return nil, fmt.Errorf("%w: prefix %q, want %q", ErrInvalidAddress, got, hrp)
	}

	return data, nil
}

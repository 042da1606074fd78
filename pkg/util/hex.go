package util

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/pkg/errors"
)

// StripHexPrefix removes a leading 0x or 0X if present
func StripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// DecodeHexBytes decodes a hex string with or without a 0x prefix. An odd
// number of digits is left padded with a zero nibble.
func DecodeHexBytes(s string) ([]byte, error) {
	s = StripHexPrefix(strings.TrimSpace(s))
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(types.ErrInvalidHex, "%q: %v", s, err)
	}
	return b, nil
}

// ParseHexQuantity parses a hex encoded unsigned integer with or without a
// 0x prefix. An empty string or a bare prefix is zero.
func ParseHexQuantity(s string) (*big.Int, error) {
	digits := StripHexPrefix(s)
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(types.ErrInvalidHex, "not a hex quantity: %q", s)
	}
	return v, nil
}

// ParseHexUint64 is ParseHexQuantity restricted to values fitting in a uint64
func ParseHexUint64(s string) (uint64, error) {
	v, err := ParseHexQuantity(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, errors.Wrapf(types.ErrInvalidHex, "quantity overflows uint64: %q", s)
	}
	return v.Uint64(), nil
}

// Package utils provides amount and hex conversion helpers for the pipeline.
package utils

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dwdwow/mp-go/types"
)

// MaxAmountDigits bounds the digits accepted in a human readable amount
const MaxAmountDigits = 78

// MaxDecimals bounds the asset precision ToRaw scales by
const MaxDecimals = 36

// ToRaw converts a human readable decimal amount into smallest units.
// The result is floor(amount * 10^decimals) as a base-10 integer string.
// Only plain decimal notation is accepted; exponents are rejected.
func ToRaw(amount string, decimals int) (string, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return "", types.NewValidationError("amount is required")
	}
	if decimals < 0 || decimals > MaxDecimals {
		return "", types.NewValidationError("invalid decimals: %d", decimals)
	}
	if strings.ContainsAny(s, "eE") {
		return "", types.NewValidationError("invalid amount %q: exponent notation is not supported", amount)
	}
	if digits := len(strings.TrimLeft(s, "+-")) - strings.Count(s, "."); digits > MaxAmountDigits {
		return "", types.NewValidationError("invalid amount %q: more than %d digits", amount, MaxAmountDigits)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", types.NewValidationError("invalid amount %q", amount)
	}
	if d.IsNegative() {
		return "", types.NewValidationError("amount must not be negative: %s", s)
	}

	return d.Shift(int32(decimals)).Floor().BigInt().String(), nil
}

// RawToUint64 parses a raw integer amount that must fit an on-chain u64
func RawToUint64(raw string) (uint64, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || n.Sign() < 0 {
		return 0, types.NewValidationError("invalid raw amount %q", raw)
	}
	if !n.IsUint64() {
		return 0, types.NewValidationError("amount %s exceeds the u64 maximum", raw)
	}
	return n.Uint64(), nil
}

// FromRaw converts smallest units back to a decimal string with trailing zeros trimmed.
// It never goes through floating point.
func FromRaw(raw string, decimals int) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "", types.NewValidationError("invalid raw amount %q", raw)
	}
	if n.Sign() < 0 {
		return "", types.NewValidationError("raw amount must not be negative: %s", raw)
	}
	if decimals < 0 {
		return "", types.NewValidationError("invalid decimals: %d", decimals)
	}

	return decimal.NewFromBigInt(n, -int32(decimals)).String(), nil
}

// IsZeroRaw reports whether a raw integer string is zero
func IsZeroRaw(raw string) bool {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	return ok && n.Sign() == 0
}

// HexToBytes converts a hex string to bytes two characters at a time.
// An optional 0x prefix is stripped; odd lengths and non-hex characters are rejected.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")

	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid hex: odd length %d", len(s))
	}

	bytes := make([]byte, len(s)/2)
	for i := 0; i < len(bytes); i++ {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex at offset %d: %q", i*2, s[i*2:i*2+2])
		}
		bytes[i] = byte(b)
	}

	return bytes, nil
}

// BytesToHex converts bytes to a hex string with 0x prefix
func BytesToHex(b []byte) string {
	hex := make([]byte, len(b)*2+2)
	hex[0] = '0'
	hex[1] = 'x'

	const hexChars = "0123456789abcdef"
	for i, v := range b {
		hex[i*2+2] = hexChars[v>>4]
		hex[i*2+3] = hexChars[v&0x0f]
	}

	return string(hex)
}

package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimalUnits converts a raw integer amount (wei, token base units) into
// decimal units by shifting it by the given number of decimals.
// Example: raw="1500000000000000000", decimals=18 => 1.5
func ToDecimalUnits(raw string, decimals uint8) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	digits, base := raw, 10
	if len(raw) > 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		digits, base = raw[2:], 16
	}
	amount, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid integer amount %q", raw)
	}
	if amount.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("negative amount %q", raw)
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)), nil
}

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

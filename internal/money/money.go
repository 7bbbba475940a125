package money

import (
	"errors"
	"fmt"
	"strings"
)

// Amounts are integer minor units (cents, kopecks). Floats never touch money:
// parsing goes digit by digit and arithmetic is overflow-checked int64.

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
	ErrAmountOverflow = errors.New("amount overflow")
)

// maxSafeAmount keeps amounts inside the range that survives a round trip
// through JSON number parsing on every client we talk to (2^53 - 1).
const maxSafeAmount int64 = 1<<53 - 1

// FromMajorString converts a decimal major-unit string ("12.50") to minor
// units. Rounds half-up to two fractional digits. Rejects scientific
// notation, signs other than an optional leading rejection of "-", empty
// input and values past the safe range.
func FromMajorString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("%w: scientific notation not allowed", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q", ErrNegativeAmount, s)
	}
	s = strings.TrimPrefix(s, "+")

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if intPart == "" {
		intPart = "0"
	}

	var minor int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		d := int64(c - '0')
		if minor > (maxSafeAmount-d)/10 {
			return 0, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
		}
		minor = minor*10 + d
	}
	if minor > maxSafeAmount/100 {
		return 0, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}
	minor *= 100

	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	switch {
	case len(fracPart) == 0:
	case len(fracPart) == 1:
		minor += int64(fracPart[0]-'0') * 10
	default:
		minor += int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
		// half-up on the third fractional digit
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			minor++
		}
	}
	if minor > maxSafeAmount {
		return 0, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}
	return minor, nil
}

// Mul computes a line total (unit price x quantity) in minor units.
func Mul(amountMinor int64, qty int64) (int64, error) {
	if amountMinor < 0 || qty < 0 {
		return 0, ErrNegativeAmount
	}
	if qty == 0 || amountMinor == 0 {
		return 0, nil
	}
	if amountMinor > maxSafeAmount/qty {
		return 0, ErrAmountOverflow
	}
	return amountMinor * qty, nil
}

// Sum adds amounts in minor units, failing on overflow instead of wrapping.
func Sum(amounts ...int64) (int64, error) {
	var total int64
	for _, a := range amounts {
		if a < 0 {
			return 0, ErrNegativeAmount
		}
		if total > maxSafeAmount-a {
			return 0, ErrAmountOverflow
		}
		total += a
	}
	return total, nil
}

// FormatMajor renders minor units as a major-unit decimal string, for
// provider payloads that insist on decimals.
func FormatMajor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

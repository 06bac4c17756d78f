// Package amount handles YAP token amounts. Raw units are fixed-point
// integers with 9 decimals (1 YAP = 1_000_000_000 raw units). Amounts
// cross the storage and wire boundaries as decimal strings to avoid
// precision loss; internally everything is big.Int.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the YAP mint's decimal precision.
const Decimals = 9

// ErrInvalidAmount is returned when parsing malformed or negative input.
var ErrInvalidAmount = errors.New("invalid amount")

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Format renders a raw integer amount as a human-readable token string
// with comma grouping and trailing fractional zeros trimmed, e.g.
// 12_345_678_900_000 -> "12,345.6789".
func Format(raw *big.Int) string {
	if raw == nil {
		return "0"
	}
	neg := raw.Sign() < 0
	abs := new(big.Int).Abs(raw)

	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))

	out := groupThousands(whole.String())
	if frac.Sign() != 0 {
		digits := fmt.Sprintf("%0*s", Decimals, frac.String())
		digits = strings.TrimRight(digits, "0")
		out += "." + digits
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Parse converts a human token string back to raw units. Comma grouping
// is accepted and fractional digits beyond the 9-decimal precision are
// truncated, never rounded. Negative or non-numeric input fails with
// ErrInvalidAmount. Parse(Format(x)) == x for all non-negative x.
func Parse(text string) (*big.Int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: signed input %q", ErrInvalidAmount, text)
	}

	wholePart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		wholePart, fracPart = s[:i], s[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, fmt.Errorf("%w: multiple decimal points in %q", ErrInvalidAmount, text)
		}
	}
	if wholePart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}

	whole, ok := new(big.Int).SetString(wholePart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}

	// Truncate past 9 fractional digits, right-pad shorter input.
	if len(fracPart) > Decimals {
		fracPart = fracPart[:Decimals]
	}
	fracPart += strings.Repeat("0", Decimals-len(fracPart))
	frac, ok := new(big.Int).SetString(fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}

	raw := new(big.Int).Mul(whole, scale)
	return raw.Add(raw, frac), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	b.Grow(n + n/3)
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

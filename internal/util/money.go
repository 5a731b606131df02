package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency-shaped token: optional thousands separators, exactly two decimal
// digits, optionally parenthesized or trailing-minus (void/reversal).
var (
	reCurrency = regexp.MustCompile(`^\(?-?\$?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}\)?-?\*?$`)
	reBareNum  = regexp.MustCompile(`\d`)
)

// LooksLikeAmount reports whether a token has currency shape.
func LooksLikeAmount(token string) bool {
	return reCurrency.MatchString(strings.TrimSpace(token))
}

// ParseAmountCents converts a currency-shaped token into signed integer
// minor units. Parentheses and trailing minus mean negative. Exact decimal
// arithmetic only; no float drift.
func ParseAmountCents(token string) (int64, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.Contains(s, ")") {
		negative = true
	}
	s = strings.Trim(s, "()*")
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", token, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("amount %q has sub-cent precision", token)
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q does not canonicalize to cents", token)
	}
	value := cents.IntPart()
	if negative {
		value = -value
	}
	return value, nil
}

// FormatCents renders minor units as a plain decimal string ("1234.56",
// "-0.05") for stable report output.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// HasDigit reports whether a string contains any digit at all.
func HasDigit(s string) bool { return reBareNum.MatchString(s) }

package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseFlexibleNumber converts free-form user input into an amount.
// Interior whitespace and underscores are stripped and every comma is
// treated as a decimal separator, so "1 000" parses as 1000 and "1,5"
// as 1.5. Like the web-style parseFloat it accepts the longest valid
// numeric prefix of the input. Returns ok=false for empty or
// unparseable input and for non-finite results.
func ParseFlexibleNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			// skip
		case r == ',':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	normalized := b.String()

	// Longest valid prefix, so "1.234.56" yields 1.234 rather than an error.
	for i := len(normalized); i > 0; i-- {
		num, err := strconv.ParseFloat(normalized[:i], 64)
		if err != nil {
			continue
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

// FormatUSDPrice renders a USD unit price with magnitude-dependent
// precision: two fraction digits at a dollar and above, four for cents,
// and six to eight for sub-cent coins so low-value prices stay legible.
// Non-finite values are coerced to zero.
func FormatUSDPrice(value float64) string {
	v := value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	switch {
	case v >= 1:
		return "$" + FormatGrouped(v, 2)
	case v >= 0.01:
		return "$" + strconv.FormatFloat(v, 'f', 4, 64)
	case v > 0:
		s := strconv.FormatFloat(v, 'f', 8, 64)
		// trim trailing zeros, keeping at least six fraction digits
		if dot := strings.IndexByte(s, '.'); dot >= 0 {
			min := dot + 1 + 6
			for len(s) > min && s[len(s)-1] == '0' {
				s = s[:len(s)-1]
			}
		}
		return "$" + s
	case v < 0:
		return "-$" + FormatGrouped(-v, 2)
	default:
		return "$" + strconv.FormatFloat(0, 'f', 2, 64)
	}
}

// FormatGrouped formats a non-negative value with thousands separators
// and a fixed number of fraction digits.
func FormatGrouped(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}

	if len(intPart) <= 3 {
		return intPart + fracPart
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + fracPart
}

// FormatSigned renders a signed delta with a leading + or - sign.
func FormatSigned(v float64, decimals int) string {
	if v < 0 {
		return "-" + FormatGrouped(-v, decimals)
	}
	return "+" + FormatGrouped(v, decimals)
}

// FormatPercent renders a percentage with two fraction digits.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// internal/units/parse.go - suffixed number parsing for bounds and thresholds
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidNumber = errors.New("invalid number")

var timeSuffixes = map[byte]float64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 7 * 86400,
}

var sizeSuffixes = map[byte]int{
	'K': 1,
	'M': 2,
	'G': 3,
	'T': 4,
}

// Parse reads a number with an optional size suffix (K, M, G, T as powers
// of 1000) or time suffix (s, m, h, d, w), e.g. "1.5K", "-2e3", "5m".
func Parse(s string) (float64, error) {
	return parse(s, 1000)
}

// ParseBinary is Parse with size suffixes as powers of 1024.
func ParseBinary(s string) (float64, error) {
	return parse(s, 1024)
}

func parse(s string, base float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidNumber)
	}

	multiplier := 1.0
	last := s[len(s)-1]
	if power, ok := sizeSuffixes[last]; ok {
		multiplier = math.Pow(base, float64(power))
		s = s[:len(s)-1]
	} else if seconds, ok := timeSuffixes[last]; ok {
		multiplier = seconds
		s = s[:len(s)-1]
	}

	if !isPlainNumber(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return n * multiplier, nil
}

// isPlainNumber accepts [+-]digits[.digits][e[+-]digits] and nothing else,
// so hex, "Inf" and "NaN" are rejected.
func isPlainNumber(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}

	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsBinaryUnits reports whether values in these units scale by 1024.
func IsBinaryUnits(units string) bool {
	return units == "B" || units == "Bps"
}

// internal/units/format.go
package units

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Units that are displayed as-is, never prefixed.
var unscaledUnits = map[string]bool{
	"%":        true,
	"ms":       true,
	"rpm":      true,
	"RPM":      true,
	"s":        true,
	"unixtime": true,
	"uptime":   true,
}

var binaryPrefixes = []string{"", "K", "M", "G", "T", "P", "E"}

// Format renders value with units. Byte units use 1024 prefixes, other units
// SI prefixes from K upwards. Values without units are not scaled.
func Format(value float64, units string, decimals int) string {
	if units == "" || unscaledUnits[units] {
		return join(formatNumber(value, decimals), units)
	}

	if IsBinaryUnits(units) {
		scaled, i := value, 0
		for math.Abs(scaled) >= 1024 && i < len(binaryPrefixes)-1 {
			scaled /= 1024
			i++
		}
		return join(formatNumber(scaled, decimals), binaryPrefixes[i]+units)
	}

	if math.Abs(value) < 1000 {
		return join(formatNumber(value, decimals), units)
	}

	scaled, prefix := humanize.ComputeSI(value)
	if prefix == "k" {
		prefix = "K"
	}
	return join(formatNumber(scaled, decimals), prefix+units)
}

// formatNumber rounds to decimals and drops trailing zeros.
func formatNumber(value float64, decimals int) string {
	s := strconv.FormatFloat(value, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func join(number, units string) string {
	if units == "" {
		return number
	}
	return number + " " + units
}

// Package units provides unit constants and conversions for user-supplied
// body measurements and derived speeds.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Length unit constants
const (
	Meters      = "m"
	Centimeters = "cm"
	Inches      = "in"
	Feet        = "ft"
)

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{Meters, Centimeters, Inches, Feet}

// IsValidLength checks if the given unit is a known length unit
func IsValidLength(unit string) bool {
	return contains(ValidLengthUnits, unit)
}

// GetValidLengthUnitsString returns a comma-separated string of valid length units for error messages
func GetValidLengthUnitsString() string {
	return strings.Join(ValidLengthUnits, ", ")
}

// LengthToMeters converts a length in the given unit to meters.
func LengthToMeters(value float64, unit string) (float64, error) {
	switch unit {
	case Meters, "":
		return value, nil
	case Centimeters:
		return value / 100, nil
	case Inches:
		return value * 0.0254, nil
	case Feet:
		return value * 0.3048, nil
	default:
		return 0, fmt.Errorf("unknown length unit %q (valid: %s)", unit, GetValidLengthUnitsString())
	}
}

// ParseHeight parses a height such as "1.82", "182cm", "72in" or "6ft" into meters.
// A bare number is taken as meters.
func ParseHeight(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty height")
	}

	// Longest suffixes first so "cm" is not read as "m".
	unit := ""
	for _, u := range []string{Centimeters, Inches, Feet, Meters} {
		if strings.HasSuffix(s, u) {
			unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid height %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("height must be positive, got %v", v)
	}
	return LengthToMeters(v, unit)
}

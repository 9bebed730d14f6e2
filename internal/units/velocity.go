package units

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH}

// IsValidSpeed checks if the given unit is a known speed unit
func IsValidSpeed(unit string) bool {
	return contains(ValidSpeedUnits, unit)
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Wrist velocities are always computed and stored in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

func contains(list []string, unit string) bool {
	for _, v := range list {
		if v == unit {
			return true
		}
	}
	return false
}

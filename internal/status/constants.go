// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown means no drain has completed yet.
const HealthUnknown uint16 = 0

// HealthOK means the last console drain succeeded.
const HealthOK uint16 = 1

// HealthError means the last console drain failed.
const HealthError uint16 = 2

// HealthStale means the device is suspended; buffered data is not refreshed.
const HealthStale uint16 = 3

// HealthDisabled means the EC has no console log support.
const HealthDisabled uint16 = 4

// ---- LIMITS ----

// SecondsInErrorMax caps the error duration counter. It never wraps.
const SecondsInErrorMax = 65535

// GenericErrorCode is reported for errors that carry no EC status.
const GenericErrorCode uint16 = 0xFFFF

// HealthName returns the lower-case name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

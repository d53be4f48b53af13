// internal/status/tracker.go
package status

import "errors"

// Tracker folds drain outcomes into health fields.
// Not safe for concurrent use; one owner per device.
type Tracker struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{Health: HealthUnknown}
}

// Observe records the outcome of the latest drain and reports whether
// any field changed.
func (t *Tracker) Observe(err error) bool {
	if err == nil {
		changed := t.Health != HealthOK || t.LastErrorCode != 0 || t.SecondsInError != 0
		t.Health = HealthOK
		t.LastErrorCode = 0
		t.SecondsInError = 0
		return changed
	}

	code := ErrorCode(err)
	changed := t.Health != HealthError || t.LastErrorCode != code
	t.Health = HealthError
	t.LastErrorCode = code
	return changed
}

// Set forces a health code that is not derived from drain outcomes
// (stale, disabled). Reports whether it changed.
func (t *Tracker) Set(health uint16) bool {
	if t.Health == health {
		return false
	}
	t.Health = health
	return true
}

// Tick advances SecondsInError by one while in error or still unknown.
// Seconds increment on the ticker only, never in Observe.
func (t *Tracker) Tick() bool {
	if t.Health != HealthError && t.Health != HealthUnknown {
		return false
	}
	if t.SecondsInError >= SecondsInErrorMax {
		return false
	}
	t.SecondsInError++
	return true
}

// Apply copies the tracked fields into s.
func (t *Tracker) Apply(s *Snapshot) {
	s.Health = t.Health
	s.LastErrorCode = t.LastErrorCode
	s.SecondsInError = t.SecondsInError
}

// ErrorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. Errors without a code map to GenericErrorCode.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}
	return GenericErrorCode
}

// internal/config/normalize.go
package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultChardevPath    = "/dev/cros_ec"
	DefaultPollIntervalMs = 10000
	DefaultBufferShift    = 14
	DefaultTimeoutMs      = 1000
	DefaultBaud           = 115200
	DefaultUnitID         = 1
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	c := &cfg.ECDebug

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	for i := range c.Devices {
		d := &c.Devices[i]

		// ------------------------------------------------------------
		// TRANSPORT DEFAULTS
		// ------------------------------------------------------------

		t := &d.Transport
		if t.Kind == KindChardev && t.Path == "" {
			t.Path = DefaultChardevPath
		}
		if t.TimeoutMs == 0 {
			t.TimeoutMs = DefaultTimeoutMs
		}
		if t.Baud == 0 && (t.Kind == KindSerial || (t.Kind == KindModbus && t.Path != "")) {
			t.Baud = DefaultBaud
		}
		if t.Kind == KindModbus && t.UnitID == 0 {
			t.UnitID = DefaultUnitID
		}

		// ------------------------------------------------------------
		// CONSOLE DEFAULTS
		// ------------------------------------------------------------

		if d.Console.BufferShift == 0 {
			d.Console.BufferShift = DefaultBufferShift
		}
		if d.Console.PollIntervalMs == 0 {
			d.Console.PollIntervalMs = DefaultPollIntervalMs
		}
	}
}

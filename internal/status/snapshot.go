// internal/status/snapshot.go
package status

// Snapshot is a point-in-time report for one device.
// It contains no logic; producers fill it, encoders render it.
type Snapshot struct {
	Device         string `cbor:"device" yaml:"device"`
	Health         uint16 `cbor:"health" yaml:"health"`
	LastErrorCode  uint16 `cbor:"last_error_code" yaml:"last_error_code"`
	SecondsInError uint16 `cbor:"seconds_in_error" yaml:"seconds_in_error"`
	LastError      string `cbor:"last_error,omitempty" yaml:"last_error,omitempty"`
	Suspended      bool   `cbor:"suspended" yaml:"suspended"`

	Features Features `cbor:"features" yaml:"features"`
	Console  *Console `cbor:"console,omitempty" yaml:"console,omitempty"`
	Ports    []Port   `cbor:"ports,omitempty" yaml:"ports,omitempty"`
	Uptime   *Uptime  `cbor:"uptime,omitempty" yaml:"uptime,omitempty"`

	PanicInfoBytes   int    `cbor:"panic_info_bytes" yaml:"panic_info_bytes"`
	LastResumeResult uint32 `cbor:"last_resume_result" yaml:"last_resume_result"`
	SuspendTimeoutMs uint16 `cbor:"suspend_timeout_ms" yaml:"suspend_timeout_ms"`
}

// Features lists what the EC answered to the attach-time probes.
type Features struct {
	ConsoleLog bool `cbor:"console_log" yaml:"console_log"`
	Uptime     bool `cbor:"uptime" yaml:"uptime"`
}

// Console reports the console pipeline counters.
type Console struct {
	State            string `cbor:"state" yaml:"state"`
	Buffered         int    `cbor:"buffered" yaml:"buffered"`
	Capacity         int    `cbor:"capacity" yaml:"capacity"`
	Appended         uint64 `cbor:"appended" yaml:"appended"`
	Dropped          uint64 `cbor:"dropped" yaml:"dropped"`
	Drains           uint64 `cbor:"drains" yaml:"drains"`
	Errors           uint64 `cbor:"errors" yaml:"errors"`
	OverflowEpisodes uint64 `cbor:"overflow_episodes" yaml:"overflow_episodes"`
}

// Port is one USB-PD port line.
type Port struct {
	Index    int    `cbor:"index" yaml:"index"`
	State    string `cbor:"state" yaml:"state"`
	Enabled  uint8  `cbor:"enabled" yaml:"enabled"`
	Role     uint8  `cbor:"role" yaml:"role"`
	Polarity uint8  `cbor:"polarity" yaml:"polarity"`
}

// Uptime mirrors the EC uptime record.
type Uptime struct {
	SinceBootMs  uint32 `cbor:"since_boot_ms" yaml:"since_boot_ms"`
	APResets     uint32 `cbor:"ap_resets" yaml:"ap_resets"`
	ECResetFlags uint32 `cbor:"ec_reset_flags" yaml:"ec_reset_flags"`
}

// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a device quickly
func device(id, kind, path, endpoint string) DeviceConfig {
	return DeviceConfig{
		ID: id,
		Transport: TransportConfig{
			Kind:     kind,
			Path:     path,
			Endpoint: endpoint,
		},
	}
}

func cfgWith(devices ...DeviceConfig) *Config {
	return &Config{ECDebug: ECDebugConfig{Devices: devices}}
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(cfgWith(device("ec", KindChardev, "", ""))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoDevices(t *testing.T) {
	if err := Validate(cfgWith()); err == nil {
		t.Fatalf("expected error for empty device list")
	}
}

func TestValidate_DuplicateID(t *testing.T) {
	err := Validate(cfgWith(
		device("ec", KindChardev, "", ""),
		device("ec", KindTCP, "", "localhost:9000"),
	))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestValidate_IDNotAPath(t *testing.T) {
	if err := Validate(cfgWith(device("a/b", KindChardev, "", ""))); err == nil {
		t.Fatalf("expected error for id with slash")
	}
}

func TestValidate_TransportRequirements(t *testing.T) {
	cases := []struct {
		name string
		dev  DeviceConfig
		ok   bool
	}{
		{"serial without path", device("d", KindSerial, "", ""), false},
		{"serial with path", device("d", KindSerial, "/dev/ttyUSB0", ""), true},
		{"tcp without endpoint", device("d", KindTCP, "", ""), false},
		{"websocket http url", device("d", KindWebSocket, "", "http://x"), false},
		{"websocket wss url", device("d", KindWebSocket, "", "wss://bench/ec"), true},
		{"modbus tcp", device("d", KindModbus, "", "10.0.0.2:502"), true},
		{"modbus rtu", device("d", KindModbus, "/dev/ttyS1", ""), true},
		{"modbus both", device("d", KindModbus, "/dev/ttyS1", "10.0.0.2:502"), false},
		{"missing kind", device("d", "", "", ""), false},
		{"unknown kind", device("d", "i2c", "", ""), false},
	}

	for _, tc := range cases {
		err := Validate(cfgWith(tc.dev))
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestValidate_BufferShiftRange(t *testing.T) {
	d := device("ec", KindChardev, "", "")
	d.Console.BufferShift = 30
	if err := Validate(cfgWith(d)); err == nil {
		t.Fatalf("expected error for buffer_shift 30")
	}
	d.Console.BufferShift = 12
	if err := Validate(cfgWith(d)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	c := cfgWith(device("ec", KindChardev, "", ""))
	c.ECDebug.Log.Level = "verbose"
	if err := Validate(c); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	c := cfgWith(
		device("ec", KindChardev, "", ""),
		device("gw", KindModbus, "/dev/ttyS1", ""),
	)
	if err := Validate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(c)

	ec := c.ECDebug.Devices[0]
	if ec.Transport.Path != DefaultChardevPath {
		t.Fatalf("expected default chardev path, got %q", ec.Transport.Path)
	}
	if ec.Console.BufferShift != DefaultBufferShift || ec.Console.PollIntervalMs != DefaultPollIntervalMs {
		t.Fatalf("console defaults not applied: %+v", ec.Console)
	}
	if !ec.Console.ConsoleEnabled() {
		t.Fatalf("console must default to enabled")
	}

	gw := c.ECDebug.Devices[1]
	if gw.Transport.UnitID != DefaultUnitID || gw.Transport.Baud != DefaultBaud {
		t.Fatalf("modbus RTU defaults not applied: %+v", gw.Transport)
	}
	if c.ECDebug.Log.Level != "info" || c.ECDebug.Log.Format != "text" {
		t.Fatalf("log defaults not applied: %+v", c.ECDebug.Log)
	}
}

func TestParse(t *testing.T) {
	doc := `
ecdebug:
  log:
    level: debug
  mount:
    mountpoint: /run/ecdebug
  devices:
    - id: ec
      transport:
        kind: chardev
      console:
        enabled: false
    - id: bench
      transport:
        kind: websocket
        endpoint: wss://bench.local/ec
        username: lab
      suspend_timeout_ms: 500
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if err := Validate(c); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
	if len(c.ECDebug.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(c.ECDebug.Devices))
	}
	if c.ECDebug.Devices[0].Console.ConsoleEnabled() {
		t.Fatalf("console.enabled=false not honoured")
	}
	if c.ECDebug.Devices[1].SuspendTimeoutMs != 500 {
		t.Fatalf("unexpected suspend timeout %d", c.ECDebug.Devices[1].SuspendTimeoutMs)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("ecdebug:\n  devcies: []\n"))
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

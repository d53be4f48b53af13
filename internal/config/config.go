// internal/config/config.go
package config

type Config struct {
	ECDebug ECDebugConfig `yaml:"ecdebug"`
}

type ECDebugConfig struct {
	Log     LogConfig      `yaml:"log"`
	Mount   MountConfig    `yaml:"mount"`
	Workers int            `yaml:"workers"`
	Devices []DeviceConfig `yaml:"devices"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ---- FILESYSTEM ----

type MountConfig struct {
	Mountpoint string `yaml:"mountpoint"` // empty => no filesystem
	AllowOther bool   `yaml:"allow_other"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID               string          `yaml:"id"`
	Transport        TransportConfig `yaml:"transport"`
	CmdOffset        uint16          `yaml:"cmd_offset"`
	Console          ConsoleConfig   `yaml:"console"`
	SuspendTimeoutMs uint16          `yaml:"suspend_timeout_ms"`
}

// ---- TRANSPORT ----

const (
	KindChardev   = "chardev"
	KindSerial    = "serial"
	KindTCP       = "tcp"
	KindWebSocket = "websocket"
	KindModbus    = "modbus"
)

type TransportConfig struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`     // chardev node, serial port or modbus RTU port
	Endpoint    string `yaml:"endpoint"` // host:port or ws(s):// URL
	Baud        int    `yaml:"baud"`
	UnitID      uint8  `yaml:"unit_id"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	MaxResponse int    `yaml:"max_response"` // 0 => negotiated
}

// ---- CONSOLE ----

type ConsoleConfig struct {
	Enabled        *bool `yaml:"enabled"` // nil => true
	BufferShift    uint  `yaml:"buffer_shift"`
	PollIntervalMs int   `yaml:"poll_interval_ms"`
}

// ConsoleEnabled reports whether the console pipeline should be created.
func (c ConsoleConfig) ConsoleEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// internal/ec/constants.go
package ec

import "fmt"

// Host command opcodes used by this driver.
// Values are fixed by the EC firmware and MUST NOT be configurable.
const (
	CmdGetCmdVersions  uint16 = 0x0008
	CmdGetProtocolInfo uint16 = 0x000B
	CmdConsoleSnapshot uint16 = 0x0097
	CmdConsoleRead     uint16 = 0x0098
	CmdGetPanicInfo    uint16 = 0x00D3
	CmdUSBPDControl    uint16 = 0x0101
	CmdGetUptimeInfo   uint16 = 0x0121
)

// Console read sub-commands (CONSOLE_READ v1).
const (
	ConsoleReadNext   uint8 = 0
	ConsoleReadRecent uint8 = 1
)

// USBPDMaxPorts is the upper bound of PD ports scanned by a port-status query.
const USBPDMaxPorts = 8

// VersionMask returns the bit for version v in a GET_CMD_VERSIONS mask.
func VersionMask(v uint8) uint32 {
	return 1 << v
}

// Result is the status code the EC reports for a command.
// It is distinct from a transport failure.
type Result uint32

const (
	ResultSuccess              Result = 0
	ResultInvalidCommand       Result = 1
	ResultError                Result = 2
	ResultInvalidParam         Result = 3
	ResultAccessDenied         Result = 4
	ResultInvalidResponse      Result = 5
	ResultInvalidVersion       Result = 6
	ResultInvalidChecksum      Result = 7
	ResultInProgress           Result = 8
	ResultUnavailable          Result = 9
	ResultTimeout              Result = 10
	ResultOverflow             Result = 11
	ResultInvalidHeader        Result = 12
	ResultRequestTruncated     Result = 13
	ResultResponseTooBig       Result = 14
	ResultBusError             Result = 15
	ResultBusy                 Result = 16
	ResultInvalidHeaderVersion Result = 17
	ResultInvalidHeaderCRC     Result = 18
	ResultInvalidDataCRC       Result = 19
	ResultDupUnavailable       Result = 20
)

var resultNames = map[Result]string{
	ResultSuccess:              "success",
	ResultInvalidCommand:       "invalid command",
	ResultError:                "error",
	ResultInvalidParam:         "invalid param",
	ResultAccessDenied:         "access denied",
	ResultInvalidResponse:      "invalid response",
	ResultInvalidVersion:       "invalid version",
	ResultInvalidChecksum:      "invalid checksum",
	ResultInProgress:           "in progress",
	ResultUnavailable:          "unavailable",
	ResultTimeout:              "timeout",
	ResultOverflow:             "overflow",
	ResultInvalidHeader:        "invalid header",
	ResultRequestTruncated:     "request truncated",
	ResultResponseTooBig:       "response too big",
	ResultBusError:             "bus error",
	ResultBusy:                 "busy",
	ResultInvalidHeaderVersion: "invalid header version",
	ResultInvalidHeaderCRC:     "invalid header crc",
	ResultInvalidDataCRC:       "invalid data crc",
	ResultDupUnavailable:       "dup unavailable",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown result %d", uint32(r))
}

// Payload limits assumed until the transport negotiates real ones:
// a 256-byte packet minus the 8-byte v3 header.
const (
	DefaultMaxRequest  = 248
	DefaultMaxResponse = 248
)

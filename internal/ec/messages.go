// internal/ec/messages.go
package ec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wire structures are packed little-endian.

// ------------------------------------------------------------
// GET_CMD_VERSIONS v1
// ------------------------------------------------------------

const (
	GetCmdVersionsParamsSize   = 2
	GetCmdVersionsResponseSize = 4
)

// GetCmdVersionsParams asks which versions of Cmd the EC implements.
type GetCmdVersionsParams struct {
	Cmd uint16
}

func (p GetCmdVersionsParams) MarshalTo(b []byte) {
	binary.LittleEndian.PutUint16(b, p.Cmd)
}

// ------------------------------------------------------------
// GET_PROTOCOL_INFO
// ------------------------------------------------------------

const ProtocolInfoSize = 12

// ProtocolInfo describes the host command packet limits of the EC.
type ProtocolInfo struct {
	ProtocolVersions      uint32
	MaxRequestPacketSize  uint16
	MaxResponsePacketSize uint16
	Flags                 uint32
}

func ParseProtocolInfo(b []byte) (ProtocolInfo, error) {
	var p ProtocolInfo
	if _, err := binary.Decode(b, binary.LittleEndian, &p); err != nil {
		return ProtocolInfo{}, fmt.Errorf("ec: protocol info: %w", err)
	}
	return p, nil
}

// ------------------------------------------------------------
// CONSOLE_READ v1
// ------------------------------------------------------------

const ConsoleReadParamsSize = 1

// ------------------------------------------------------------
// USB_PD_CONTROL
// ------------------------------------------------------------

const (
	USBPDControlParamsSize     = 4
	USBPDControlResponseV1Size = 35
	usbPDStateSize             = 32
)

// USBPDControlParams selects a port. Zero role, mux and swap leave the
// port configuration untouched.
type USBPDControlParams struct {
	Port uint8
	Role uint8
	Mux  uint8
	Swap uint8
}

func (p USBPDControlParams) MarshalTo(b []byte) {
	b[0], b[1], b[2], b[3] = p.Port, p.Role, p.Mux, p.Swap
}

type USBPDControlResponseV1 struct {
	Enabled  uint8
	Role     uint8
	Polarity uint8
	State    [usbPDStateSize]byte
}

func ParseUSBPDControlResponseV1(b []byte) (USBPDControlResponseV1, error) {
	var r USBPDControlResponseV1
	if _, err := binary.Decode(b, binary.LittleEndian, &r); err != nil {
		return USBPDControlResponseV1{}, fmt.Errorf("ec: usb pd control: %w", err)
	}
	return r, nil
}

// StateName returns the NUL-terminated state name.
func (r USBPDControlResponseV1) StateName() string {
	s := r.State[:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// ------------------------------------------------------------
// GET_UPTIME_INFO
// ------------------------------------------------------------

const (
	UptimeInfoSize   = 44
	apResetLogLength = 4
)

type APResetLogEntry struct {
	ResetCause  uint16
	Reserved    uint16
	ResetTimeMs uint32
}

type UptimeInfo struct {
	TimeSinceECBootMs   uint32
	APResetsSinceECBoot uint32
	ECResetFlags        uint32
	RecentAPResets      [apResetLogLength]APResetLogEntry
}

func ParseUptimeInfo(b []byte) (UptimeInfo, error) {
	var u UptimeInfo
	if _, err := binary.Decode(b, binary.LittleEndian, &u); err != nil {
		return UptimeInfo{}, fmt.Errorf("ec: uptime info: %w", err)
	}
	return u, nil
}

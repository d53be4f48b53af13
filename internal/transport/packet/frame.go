// internal/transport/packet/frame.go

// Package packet carries EC host commands over a byte stream using
// version 3 packet framing. It is used for UART consoles, TCP bridges
// and WebSocket relays.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

//
// ---- Packet v3 framing (LOCKED) ----
//
// Request header (8 bytes):
// 0    struct_version (3)
// 1    checksum
// 2–3  command (LE)
// 4    command_version
// 5    reserved (0)
// 6–7  data_len (LE)
// 8+   data
//
// Response header (8 bytes):
// 0    struct_version (3)
// 1    checksum
// 2–3  result (LE)
// 4–5  data_len (LE)
// 6–7  reserved (0)
// 8+   data
//
// The checksum makes all bytes of header and data sum to zero.
//

const (
	StructVersion = 3
	HeaderSize    = 8
)

var (
	ErrChecksum       = errors.New("packet: checksum mismatch")
	ErrStructVersion  = errors.New("packet: unsupported struct version")
	ErrResponseTooBig = errors.New("packet: response larger than requested")
	ErrShortFrame     = errors.New("packet: short frame")
)

// RequestHeader is the decoded request header.
type RequestHeader struct {
	Command        uint16
	CommandVersion uint8
	DataLen        uint16
}

// ResponseHeader is the decoded response header.
type ResponseHeader struct {
	Result  uint16
	DataLen uint16
}

// EncodeRequest builds a complete request frame.
func EncodeRequest(command uint16, version uint8, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("packet: request data %d bytes too long", len(data))
	}
	pkt := make([]byte, HeaderSize+len(data))
	pkt[0] = StructVersion
	binary.LittleEndian.PutUint16(pkt[2:4], command)
	pkt[4] = version
	binary.LittleEndian.PutUint16(pkt[6:8], uint16(len(data)))
	copy(pkt[HeaderSize:], data)
	pkt[1] = checksum(pkt)
	return pkt, nil
}

// EncodeResponse builds a complete response frame.
func EncodeResponse(result uint16, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("packet: response data %d bytes too long", len(data))
	}
	pkt := make([]byte, HeaderSize+len(data))
	pkt[0] = StructVersion
	binary.LittleEndian.PutUint16(pkt[2:4], result)
	binary.LittleEndian.PutUint16(pkt[4:6], uint16(len(data)))
	copy(pkt[HeaderSize:], data)
	pkt[1] = checksum(pkt)
	return pkt, nil
}

// ParseRequestHeader decodes the fixed part of a request.
func ParseRequestHeader(hdr []byte) (RequestHeader, error) {
	if len(hdr) < HeaderSize {
		return RequestHeader{}, ErrShortFrame
	}
	if hdr[0] != StructVersion {
		return RequestHeader{}, fmt.Errorf("%w: %d", ErrStructVersion, hdr[0])
	}
	return RequestHeader{
		Command:        binary.LittleEndian.Uint16(hdr[2:4]),
		CommandVersion: hdr[4],
		DataLen:        binary.LittleEndian.Uint16(hdr[6:8]),
	}, nil
}

// ParseResponseHeader decodes the fixed part of a response.
func ParseResponseHeader(hdr []byte) (ResponseHeader, error) {
	if len(hdr) < HeaderSize {
		return ResponseHeader{}, ErrShortFrame
	}
	if hdr[0] != StructVersion {
		return ResponseHeader{}, fmt.Errorf("%w: %d", ErrStructVersion, hdr[0])
	}
	return ResponseHeader{
		Result:  binary.LittleEndian.Uint16(hdr[2:4]),
		DataLen: binary.LittleEndian.Uint16(hdr[4:6]),
	}, nil
}

// Verify reports ErrChecksum unless every byte of the frame sums to zero.
func Verify(frame ...[]byte) error {
	var sum byte
	for _, part := range frame {
		for _, b := range part {
			sum += b
		}
	}
	if sum != 0 {
		return ErrChecksum
	}
	return nil
}

// checksum returns the 2's complement of the byte sum of pkt, with the
// checksum slot counted as zero.
func checksum(pkt []byte) byte {
	var sum byte
	for i, b := range pkt {
		if i == 1 {
			continue
		}
		sum += b
	}
	return ^sum + 1
}

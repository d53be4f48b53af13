// internal/ec/errors.go
package ec

import (
	"errors"
	"fmt"
)

// ErrMessageSize is returned when a request does not fit the transport
// limits or the record's payload buffer.
var ErrMessageSize = errors.New("ec: message size exceeds limit")

// TransportError means the channel could not deliver the request or
// receive the response (bus error, timeout, device absent).
type TransportError struct {
	Command uint32
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ec: command 0x%04x: transport: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the EC answered with a non-success status.
type ProtocolError struct {
	Command uint32
	Version uint32
	Result  Result
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ec: command 0x%04x v%d failed: %s (%d)",
		e.Command, e.Version, e.Result, uint32(e.Result))
}

// Code exposes the EC result for status reporting.
func (e *ProtocolError) Code() uint16 {
	return uint16(e.Result)
}

// IsProtocolError reports whether err carries an EC status.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ResultOf extracts the EC status from err, if any.
func ResultOf(err error) (Result, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Result, true
	}
	return 0, false
}

// Unsupported reports whether err means the EC does not know the command.
// Only this outcome may permanently disable a feature.
func Unsupported(err error) bool {
	r, ok := ResultOf(err)
	return ok && r == ResultInvalidCommand
}
